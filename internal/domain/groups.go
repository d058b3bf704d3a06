package domain

// ConditionGroup is one experimental condition: all events that produced the
// same condition label.
type ConditionGroup struct {
	Label      string `json:"label"`
	Members    []int  `json:"member_event_indices"`
	IsPractice bool   `json:"is_practice"`
}

func (g *ConditionGroup) Count() int { return len(g.Members) }

// SelectOpts are caller overrides for the selector. Zero value means full
// heuristic defaults.
type SelectOpts struct {
	// GroupingFields overrides the discovered grouping fields. Names not
	// present in the discovery result are rejected and reported back.
	GroupingFields []string `json:"grouping_fields,omitempty"`
	// AllowList keeps only groups whose label contains one of these substrings.
	AllowList []string `json:"allow_list,omitempty"`
	// IncludePractice keeps practice groups in the returned list (flagged).
	IncludePractice bool `json:"include_practice"`
}

// Selection is the selector's output: the final condition groups plus the
// diagnostics a caller needs to judge whether the grouping is sane.
type Selection struct {
	Groups         []ConditionGroup `json:"groups"`
	GroupingFields []string         `json:"grouping_fields"`
	RejectedFields []string         `json:"rejected_fields,omitempty"` // invalid override names
	TotalEvents    int              `json:"total_events"`
	LabeledEvents  int              `json:"labeled_events"`
	SkippedEvents  int              `json:"skipped_events"`
}

// Counts returns label -> member count for the selected groups.
func (s *Selection) Counts() map[string]int {
	counts := make(map[string]int, len(s.Groups))
	for i := range s.Groups {
		counts[s.Groups[i].Label] = s.Groups[i].Count()
	}
	return counts
}
