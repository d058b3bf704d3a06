package engine

import (
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultStructureSampleLimit caps how many events the detector inspects.
	DefaultStructureSampleLimit = 100

	// maxSimpleLabelLen bounds what still counts as an atomic code.
	maxSimpleLabelLen = 24
)

// StructureDetector classifies the event stream into one of the known
// textual encodings. Detection never fails: a stream with no recognizable
// structure yields FormatUnknown with confidence 0.
type StructureDetector struct {
	SampleLimit int

	logger *zap.Logger
}

func NewStructureDetector(logger *zap.Logger) *StructureDetector {
	return &StructureDetector{
		SampleLimit: DefaultStructureSampleLimit,
		logger:      logger,
	}
}

// Detect samples up to SampleLimit events (evenly spaced, deterministic),
// tallies which lexical patterns each label matches, and picks the format
// with the most matches. Ties break by information preserved:
// bracket > fields > delimiter > simple.
func (d *StructureDetector) Detect(events []domain.RawEvent) domain.DetectedStructure {
	if len(events) == 0 {
		return domain.DetectedStructure{Format: domain.FormatUnknown}
	}

	indices := sampleIndices(len(events), d.SampleLimit)
	counts := map[domain.StructureFormat]int{}
	examples := map[domain.StructureFormat]string{}

	for _, i := range indices {
		ev := events[i]
		for _, f := range formatPriority {
			if matchesFormat(ev, f) {
				counts[f]++
				if examples[f] == "" {
					examples[f] = ev.Label
				}
			}
		}
	}

	best := domain.FormatUnknown
	bestCount := 0
	for _, f := range formatPriority {
		if counts[f] > bestCount {
			best = f
			bestCount = counts[f]
		}
	}

	structure := domain.DetectedStructure{
		Format:       best,
		Confidence:   float64(bestCount) / float64(len(indices)),
		EventPattern: examples[best],
	}

	d.logger.Debug("detected event structure",
		zap.String("format", string(structure.Format)),
		zap.Float64("confidence", structure.Confidence),
		zap.Int("sampled", len(indices)))

	return structure
}

// formatPriority is the tie-break order: richer encodings first.
var formatPriority = []domain.StructureFormat{
	domain.FormatBracket,
	domain.FormatFields,
	domain.FormatDelimiter,
	domain.FormatSimple,
}

func matchesFormat(ev domain.RawEvent, f domain.StructureFormat) bool {
	switch f {
	case domain.FormatBracket:
		return matchesBracket(ev.Label)
	case domain.FormatFields:
		return len(ev.Attrs) > 0
	case domain.FormatDelimiter:
		return matchesDelimiter(ev.Label)
	case domain.FormatSimple:
		return matchesSimple(ev.Label)
	}
	return false
}

func matchesBracket(label string) bool {
	open := strings.Index(label, "[")
	if open < 0 {
		return false
	}
	end := strings.Index(label[open:], "]")
	if end < 0 {
		return false
	}
	return strings.Contains(label[open+1:open+end], ":")
}

func matchesDelimiter(label string) bool {
	if strings.ContainsAny(label, "[]") {
		return false
	}
	tokens := strings.FieldsFunc(label, func(r rune) bool {
		return r == '_' || r == '-'
	})
	return len(tokens) >= 2
}

func matchesSimple(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" || len(label) > maxSimpleLabelLen {
		return false
	}
	return !strings.ContainsAny(label, "[]_-")
}

// sampleIndices returns up to limit indices evenly spaced across n events.
// Deterministic for a given input size, so repeated runs see the same
// sample.
func sampleIndices(n, limit int) []int {
	if limit <= 0 || n <= limit {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	indices := make([]int, limit)
	step := float64(n) / float64(limit)
	for i := range indices {
		indices[i] = int(float64(i) * step)
	}
	return indices
}
