package engine

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/evokedlab/evoked/internal/domain"
	"go.uber.org/zap"
)

func discoverFor(t *testing.T, events []domain.RawEvent) (domain.DetectedStructure, *domain.DiscoveryResult) {
	t.Helper()
	structure := NewStructureDetector(zap.NewNop()).Detect(events)
	discovery := NewDiscoveryEngine(zap.NewNop()).Discover(events, structure)
	return structure, discovery
}

func groupCounts(groups []domain.ConditionGroup) map[string]int {
	counts := make(map[string]int, len(groups))
	for _, g := range groups {
		counts[g.Label] = g.Count()
	}
	return counts
}

func TestSelector_LexicalDecisionGroups(t *testing.T) {
	events := makeLexicalEvents(false)
	structure, discovery := discoverFor(t, events)

	selection := NewSelector(zap.NewNop()).Select(events, structure, discovery, domain.SelectOpts{})

	if selection.TotalEvents != 261 || selection.LabeledEvents != 261 || selection.SkippedEvents != 0 {
		t.Fatalf("counts total=%d labeled=%d skipped=%d, want 261/261/0",
			selection.TotalEvents, selection.LabeledEvents, selection.SkippedEvents)
	}

	want := map[string]int{
		"G23_word":     38,
		"SG23_nonword": 35,
		"G11_word":     48,
		"SG11_nonword": 45,
		"G05_word":     50,
		"SG05_nonword": 45,
	}
	if got := groupCounts(selection.Groups); !reflect.DeepEqual(got, want) {
		t.Errorf("group counts = %v, want %v", got, want)
	}

	// Descending by member count; the two 45-member groups keep stream
	// order.
	wantOrder := []string{"G05_word", "G11_word", "SG11_nonword", "SG05_nonword", "G23_word", "SG23_nonword"}
	for i, g := range selection.Groups {
		if g.Label != wantOrder[i] {
			t.Fatalf("group[%d] = %s, want %s (full order %v)", i, g.Label, wantOrder[i], selection.Groups)
		}
	}

	if !reflect.DeepEqual(selection.GroupingFields, []string{"cond", "word"}) {
		t.Errorf("GroupingFields = %v, want [cond word]", selection.GroupingFields)
	}
}

func TestSelector_PracticeExclusion(t *testing.T) {
	events := makeLexicalEvents(true)
	structure, discovery := discoverFor(t, events)
	selector := NewSelector(zap.NewNop())

	excluded := selector.Select(events, structure, discovery, domain.SelectOpts{})
	if len(excluded.Groups) != 6 {
		t.Fatalf("default selection has %d groups, want 6 (practice excluded)", len(excluded.Groups))
	}
	for _, g := range excluded.Groups {
		if g.IsPractice {
			t.Errorf("practice group %s leaked into default selection", g.Label)
		}
	}

	included := selector.Select(events, structure, discovery, domain.SelectOpts{IncludePractice: true})
	if len(included.Groups) != 7 {
		t.Fatalf("inclusive selection has %d groups, want 7", len(included.Groups))
	}
	var practice *domain.ConditionGroup
	for i := range included.Groups {
		if included.Groups[i].IsPractice {
			practice = &included.Groups[i]
		}
	}
	if practice == nil {
		t.Fatal("no practice group in inclusive selection")
	}
	if practice.Label != "TRN1_word" || practice.Count() != 12 {
		t.Errorf("practice group = %s (%d members), want TRN1_word (12)", practice.Label, practice.Count())
	}
}

func TestSelector_AllowList(t *testing.T) {
	events := makeLexicalEvents(false)
	structure, discovery := discoverFor(t, events)

	selection := NewSelector(zap.NewNop()).Select(events, structure, discovery, domain.SelectOpts{
		AllowList: []string{"G05_word", "SG23"},
	})

	want := map[string]int{"G05_word": 50, "SG23_nonword": 35}
	if got := groupCounts(selection.Groups); !reflect.DeepEqual(got, want) {
		t.Errorf("group counts = %v, want %v", got, want)
	}
}

func TestSelector_GroupingOverride(t *testing.T) {
	events := makeLexicalEvents(false)
	structure, discovery := discoverFor(t, events)
	selector := NewSelector(zap.NewNop())

	t.Run("valid override replaces heuristics", func(t *testing.T) {
		selection := selector.Select(events, structure, discovery, domain.SelectOpts{
			GroupingFields: []string{"word"},
		})
		if !reflect.DeepEqual(selection.GroupingFields, []string{"word"}) {
			t.Errorf("GroupingFields = %v, want [word]", selection.GroupingFields)
		}
		want := map[string]int{"word": 136, "nonword": 125}
		if got := groupCounts(selection.Groups); !reflect.DeepEqual(got, want) {
			t.Errorf("group counts = %v, want %v", got, want)
		}
		if selection.RejectedFields != nil {
			t.Errorf("RejectedFields = %v, want none", selection.RejectedFields)
		}
	})

	t.Run("unknown names reported, valid subset used", func(t *testing.T) {
		selection := selector.Select(events, structure, discovery, domain.SelectOpts{
			GroupingFields: []string{"word", "bogus"},
		})
		if !reflect.DeepEqual(selection.RejectedFields, []string{"bogus"}) {
			t.Errorf("RejectedFields = %v, want [bogus]", selection.RejectedFields)
		}
		if !reflect.DeepEqual(selection.GroupingFields, []string{"word"}) {
			t.Errorf("GroupingFields = %v, want [word]", selection.GroupingFields)
		}
	})

	t.Run("fully invalid override falls back to heuristics", func(t *testing.T) {
		selection := selector.Select(events, structure, discovery, domain.SelectOpts{
			GroupingFields: []string{"bogus", "nope"},
		})
		if !reflect.DeepEqual(selection.RejectedFields, []string{"bogus", "nope"}) {
			t.Errorf("RejectedFields = %v", selection.RejectedFields)
		}
		if !reflect.DeepEqual(selection.GroupingFields, []string{"cond", "word"}) {
			t.Errorf("GroupingFields = %v, want heuristic [cond word]", selection.GroupingFields)
		}
		if len(selection.Groups) != 6 {
			t.Errorf("groups = %d, want 6", len(selection.Groups))
		}
	})
}

// Opaque trigger codes with no internal structure still partition: one
// group per distinct code.
func TestSelector_AtomicCodes(t *testing.T) {
	var events []domain.RawEvent
	for i := 0; i < 50; i++ {
		label := "S1"
		if i%5 == 0 {
			label = "S2"
		}
		events = append(events, domain.RawEvent{Index: i, Onset: float64(i), Label: label})
	}
	structure, discovery := discoverFor(t, events)
	if structure.Format != domain.FormatSimple {
		t.Fatalf("structure = %s, want simple", structure.Format)
	}

	selection := NewSelector(zap.NewNop()).Select(events, structure, discovery, domain.SelectOpts{})
	want := map[string]int{"S1": 40, "S2": 10}
	if got := groupCounts(selection.Groups); !reflect.DeepEqual(got, want) {
		t.Errorf("group counts = %v, want %v", got, want)
	}
}

// With nothing to group on, everything collapses into one catch-all group
// instead of zero groups.
func TestSelector_CatchAllGroup(t *testing.T) {
	events := attrEvents(50, func(i int) map[string]string {
		return map[string]string{"id": fmt.Sprint(i)}
	})
	structure, discovery := discoverFor(t, events)

	selection := NewSelector(zap.NewNop()).Select(events, structure, discovery, domain.SelectOpts{})
	if len(selection.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(selection.Groups))
	}
	if g := selection.Groups[0]; g.Label != CatchAllLabel || g.Count() != 50 {
		t.Errorf("group = %s (%d members), want %s (50)", g.Label, g.Count(), CatchAllLabel)
	}
}

func TestSelector_SingletonGroupKept(t *testing.T) {
	events := attrEvents(6, func(i int) map[string]string {
		cond := "A"
		if i == 5 {
			cond = "B"
		}
		return map[string]string{"cond": cond}
	})
	structure, discovery := discoverFor(t, events)

	selection := NewSelector(zap.NewNop()).Select(events, structure, discovery, domain.SelectOpts{})
	want := map[string]int{"A": 5, "B": 1}
	if got := groupCounts(selection.Groups); !reflect.DeepEqual(got, want) {
		t.Errorf("group counts = %v, want %v", got, want)
	}
}
