package engine

import (
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
)

// LabelSeparator joins grouping-field values into a condition label.
const LabelSeparator = "_"

// CatchAllLabel is used when discovery found no grouping fields: every
// labelable event collapses into one group rather than none.
const CatchAllLabel = "all_events"

// Labeler converts one raw event into its condition label by extracting the
// grouping-field values and applying the discovered value mappings. It is a
// pure function of its inputs: identical field values always yield an
// identical label, which is the invariant the averaging stage depends on.
type Labeler struct {
	extractor FieldExtractor
	discovery *domain.DiscoveryResult
}

func NewLabeler(structure domain.DetectedStructure, discovery *domain.DiscoveryResult) *Labeler {
	return &Labeler{
		extractor: ExtractorFor(structure.Format),
		discovery: discovery,
	}
}

// Label returns the condition label for ev. ok is false when the event
// cannot be labeled: nothing extractable, or a grouping field holding a
// placeholder value ("", "?", or the not-applicable sentinel "0").
func (l *Labeler) Label(ev domain.RawEvent) (label string, ok bool) {
	fields := l.extractor.Extract(ev)
	if fields == nil {
		return "", false
	}

	if len(l.discovery.GroupingFields) == 0 {
		return CatchAllLabel, true
	}

	parts := make([]string, 0, len(l.discovery.GroupingFields))
	for _, name := range l.discovery.GroupingFields {
		value, present := fields[name]
		if !present {
			return "", false
		}
		if mapped, exists := l.discovery.ValueMappings[name][value]; exists {
			value = mapped
		} else if isPlaceholder(value) {
			return "", false
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, LabelSeparator), true
}

// Fields exposes the extracted field map for one event, for practice and
// allow-list checks that need raw values rather than the joined label.
func (l *Labeler) Fields(ev domain.RawEvent) map[string]string {
	return l.extractor.Extract(ev)
}

func isPlaceholder(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "?", "0":
		return true
	}
	return false
}
