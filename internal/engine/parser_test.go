package engine

import (
	"testing"

	"github.com/evokedlab/evoked/internal/domain"
)

func bracketStructure() domain.DetectedStructure {
	return domain.DetectedStructure{Format: domain.FormatBracket, Confidence: 1}
}

func lexicalDiscovery() *domain.DiscoveryResult {
	return &domain.DiscoveryResult{
		Fields:         []string{"cond", "word", "trial"},
		GroupingFields: []string{"cond", "word"},
		ValueMappings: map[string]map[string]string{
			"word": {"y": "word", "n": "nonword"},
		},
	}
}

func TestLabeler_Label(t *testing.T) {
	labeler := NewLabeler(bracketStructure(), lexicalDiscovery())

	tests := []struct {
		name      string
		label     string
		wantLabel string
		wantOK    bool
	}{
		{
			name:      "mapped values joined in grouping order",
			label:     "stim[cond: G23, word: y, trial: 12]",
			wantLabel: "G23_word",
			wantOK:    true,
		},
		{
			name:      "negative pole of the mapping",
			label:     "stim[cond: SG23, word: n, trial: 13]",
			wantLabel: "SG23_nonword",
			wantOK:    true,
		},
		{
			name:   "placeholder question mark skips the event",
			label:  "stim[cond: G23, word: ?, trial: 14]",
			wantOK: false,
		},
		{
			name:   "placeholder zero skips the event",
			label:  "stim[cond: 0, word: y, trial: 15]",
			wantOK: false,
		},
		{
			name:   "empty grouping value skips the event",
			label:  "stim[cond: , word: y, trial: 16]",
			wantOK: false,
		},
		{
			name:   "missing grouping field skips the event",
			label:  "stim[trial: 17]",
			wantOK: false,
		},
		{
			name:   "unparseable label skips the event",
			label:  "boundary",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := labeler.Label(domain.RawEvent{Label: tt.label})
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.wantLabel {
				t.Errorf("label = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}

// A mapping that names the "0" pole wins over the placeholder rule: the
// discovered schema told us zero carries meaning for this field.
func TestLabeler_MappingCoversPlaceholder(t *testing.T) {
	discovery := &domain.DiscoveryResult{
		Fields:         []string{"isverb"},
		GroupingFields: []string{"isverb"},
		ValueMappings: map[string]map[string]string{
			"isverb": {"1": "verb", "0": "nonverb"},
		},
	}
	labeler := NewLabeler(bracketStructure(), discovery)

	got, ok := labeler.Label(domain.RawEvent{Label: "stim[isverb: 0]"})
	if !ok {
		t.Fatal("event with mapped zero value should be labelable")
	}
	if got != "nonverb" {
		t.Errorf("label = %q, want nonverb", got)
	}
}

func TestLabeler_CatchAllWhenNoGroupingFields(t *testing.T) {
	discovery := &domain.DiscoveryResult{Fields: []string{"id"}}
	labeler := NewLabeler(bracketStructure(), discovery)

	got, ok := labeler.Label(domain.RawEvent{Label: "stim[id: 991]"})
	if !ok || got != CatchAllLabel {
		t.Errorf("label = %q ok = %v, want %q true", got, ok, CatchAllLabel)
	}
}

func TestLabeler_Pure(t *testing.T) {
	labeler := NewLabeler(bracketStructure(), lexicalDiscovery())
	ev := domain.RawEvent{Label: "stim[cond: G11, word: y, trial: 3]"}

	first, ok := labeler.Label(ev)
	if !ok {
		t.Fatal("event should be labelable")
	}
	for i := 0; i < 10; i++ {
		again, _ := labeler.Label(ev)
		if again != first {
			t.Fatalf("labeling not stable: %q vs %q", again, first)
		}
	}

	// Identical field values under a different trial number map to the
	// same group.
	other, _ := labeler.Label(domain.RawEvent{Label: "stim[cond: G11, word: y, trial: 200]"})
	if other != first {
		t.Errorf("same grouping values produced %q and %q", first, other)
	}
}
