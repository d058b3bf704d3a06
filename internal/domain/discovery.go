package domain

type FieldClass string

const (
	FieldCondition     FieldClass = "condition"
	FieldTrialSpecific FieldClass = "trial_specific"
	FieldMetadata      FieldClass = "metadata"
	FieldOptional      FieldClass = "optional"
)

func ValidFieldClass(c string) bool {
	switch FieldClass(c) {
	case FieldCondition, FieldTrialSpecific, FieldMetadata, FieldOptional:
		return true
	}
	return false
}

// FieldStat holds the per-field statistics gathered during discovery.
// Cardinality = NumUnique / sample count; classification is a pure function
// of cardinality, unique count, and the field name's lexical pattern.
type FieldStat struct {
	Name         string     `json:"name"`
	UniqueValues []string   `json:"unique_values"` // sorted
	NumUnique    int        `json:"num_unique"`
	Cardinality  float64    `json:"cardinality"`
	SampleValues []string   `json:"sample_values"` // first few observed, in order
	Class        FieldClass `json:"classification"`
}

// DiscoveryResult is the discovered latent schema of the event stream:
// which fields exist, how each classifies, which drive grouping, and any
// suggested value remappings. Invariants: GroupingFields and ExcludeFields
// are disjoint, and every grouping field appears in Fields.
type DiscoveryResult struct {
	Fields           []string                     `json:"fields"`
	Stats            map[string]*FieldStat        `json:"field_stats"`
	GroupingFields   []string                     `json:"grouping_fields"` // priority order, capped
	ExcludeFields    []string                     `json:"exclude_fields"`
	PracticePatterns []string                     `json:"practice_patterns,omitempty"`
	ValueMappings    map[string]map[string]string `json:"value_mappings,omitempty"`
	SampleCount      int                          `json:"sample_count"`
}

// HasField reports whether name was observed during discovery.
func (d *DiscoveryResult) HasField(name string) bool {
	for _, f := range d.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// WithGroupingFields returns a shallow copy of d using the given grouping
// fields instead of the discovered ones. The caller must have validated the
// names against Fields.
func (d *DiscoveryResult) WithGroupingFields(fields []string) *DiscoveryResult {
	clone := *d
	clone.GroupingFields = fields
	return &clone
}
