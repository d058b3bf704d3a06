package engine

import (
	"sort"
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
	"go.uber.org/zap"
)

// Tunable defaults for the field classifier. The cardinality cutoffs and
// the grouping-field cap were tuned against lexical-decision datasets; they
// are fields on DiscoveryEngine rather than hardcoded so callers with very
// different designs can adjust them.
const (
	DefaultDiscoverySampleLimit = 500

	DefaultConditionCardinalityMax = 0.3
	DefaultTrialCardinalityMin     = 0.7
	DefaultConditionUniqueMin      = 2
	DefaultConditionUniqueMax      = 20
	DefaultTrialUniqueMax          = 50
	DefaultOverrideCardinalityMax  = 0.5

	DefaultMaxGroupingFields  = 3
	DefaultHighPriority       = 70.0
	DefaultCardinalityBonus   = 10.0
	DefaultSampleValuesKept   = 5
)

// Lexical field-name tables. Name patterns are a stronger signal than raw
// cardinality, so they override the baseline cardinality rule.
var (
	metadataNameParts = []string{
		"chan", "electrode", "device", "montage", "srate", "sample_rate",
		"timestamp", "onset", "duration", "offset", "urevent", "filename",
		"subject", "session", "age", "sex", "gender", "date",
	}
	trialNameParts = []string{
		"trial", "obs", "resp", "reaction", "latency", "answer", "button", "key",
	}
	trialExactNames = []string{"rt", "n", "item"}

	conditionNameParts = []string{
		"cond", "stim", "task", "block", "cat", "group", "class",
	}

	practiceNameParts = []string{"practice", "prac", "train", "warmup"}
)

// groupingPriorities maps candidate field names to a base priority.
// Experimenter-defined condition variables score highest; positional
// delimiter fields and the atomic fallback score lowest.
var groupingPriorities = []struct {
	parts    []string
	priority float64
}{
	{[]string{"cond"}, 90},
	{[]string{"stim"}, 80},
	{[]string{"task", "block"}, 70},
	{[]string{"cat", "group", "class"}, 60},
	{[]string{"type"}, 50},
	{[]string{"field"}, 30},
}

const defaultGroupingPriority = 20.0

// DiscoveryEngine mines the latent field schema from a sample of the event
// stream and classifies each field as condition, trial-specific, metadata,
// or optional. Malformed events are skipped, never fatal; a stream with no
// discoverable fields yields an empty grouping list and the selector
// degrades to a single group.
type DiscoveryEngine struct {
	SampleLimit             int
	ConditionCardinalityMax float64
	TrialCardinalityMin     float64
	ConditionUniqueMin      int
	ConditionUniqueMax      int
	TrialUniqueMax          int
	OverrideCardinalityMax  float64
	MaxGroupingFields       int
	HighPriority            float64

	logger *zap.Logger
}

func NewDiscoveryEngine(logger *zap.Logger) *DiscoveryEngine {
	return &DiscoveryEngine{
		SampleLimit:             DefaultDiscoverySampleLimit,
		ConditionCardinalityMax: DefaultConditionCardinalityMax,
		TrialCardinalityMin:     DefaultTrialCardinalityMin,
		ConditionUniqueMin:      DefaultConditionUniqueMin,
		ConditionUniqueMax:      DefaultConditionUniqueMax,
		TrialUniqueMax:          DefaultTrialUniqueMax,
		OverrideCardinalityMax:  DefaultOverrideCardinalityMax,
		MaxGroupingFields:       DefaultMaxGroupingFields,
		HighPriority:            DefaultHighPriority,
		logger:                  logger,
	}
}

type fieldAccumulator struct {
	name    string
	values  map[string]struct{}
	samples []string
	count   int
}

// Discover samples up to SampleLimit events evenly across the stream,
// extracts fields under the detected structure, computes per-field
// cardinality statistics, and derives the grouping decision.
func (e *DiscoveryEngine) Discover(events []domain.RawEvent, structure domain.DetectedStructure) *domain.DiscoveryResult {
	result := &domain.DiscoveryResult{
		Stats:         map[string]*domain.FieldStat{},
		ValueMappings: map[string]map[string]string{},
	}
	if len(events) == 0 {
		return result
	}

	extractor := ExtractorFor(structure.Format)
	indices := sampleIndices(len(events), e.SampleLimit)
	result.SampleCount = len(indices)

	accs := map[string]*fieldAccumulator{}
	var order []string
	for _, i := range indices {
		fields := extractor.Extract(events[i])
		if fields == nil {
			continue
		}
		// Walk field names sorted so first-seen order is deterministic
		// across runs regardless of map iteration order.
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			acc, ok := accs[name]
			if !ok {
				acc = &fieldAccumulator{name: name, values: map[string]struct{}{}}
				accs[name] = acc
				order = append(order, name)
			}
			acc.count++
			acc.values[fields[name]] = struct{}{}
			if len(acc.samples) < DefaultSampleValuesKept {
				acc.samples = append(acc.samples, fields[name])
			}
		}
	}
	result.Fields = order

	for _, name := range order {
		acc := accs[name]
		stat := e.classifyField(acc, result.SampleCount)
		result.Stats[name] = stat

		switch stat.Class {
		case domain.FieldMetadata, domain.FieldTrialSpecific:
			result.ExcludeFields = append(result.ExcludeFields, name)
		}

		if nameMatches(name, practiceNameParts, nil) {
			for _, v := range stat.UniqueValues {
				if isNegativeFlag(v) {
					// A "not practice" pole would mark every trial.
					continue
				}
				if v != "" && v != "?" && v != "0" {
					result.PracticePatterns = append(result.PracticePatterns, v)
				}
			}
		}
	}
	sort.Strings(result.PracticePatterns)

	result.GroupingFields = e.selectGroupingFields(result)

	for _, name := range result.GroupingFields {
		if mapping := suggestValueMapping(name, result.Stats[name].UniqueValues); mapping != nil {
			result.ValueMappings[name] = mapping
		}
	}

	e.logger.Debug("field discovery complete",
		zap.Int("fields", len(result.Fields)),
		zap.Strings("grouping_fields", result.GroupingFields),
		zap.Int("sample_count", result.SampleCount))

	return result
}

// classifyField applies the baseline cardinality rule, then the lexical
// overrides in fixed order. Later rules win: field-name patterns are a more
// reliable signal than cardinality alone.
func (e *DiscoveryEngine) classifyField(acc *fieldAccumulator, sampleCount int) *domain.FieldStat {
	unique := make([]string, 0, len(acc.values))
	for v := range acc.values {
		unique = append(unique, v)
	}
	sort.Strings(unique)

	stat := &domain.FieldStat{
		Name:         acc.name,
		UniqueValues: unique,
		NumUnique:    len(unique),
		Cardinality:  float64(len(unique)) / float64(sampleCount),
		SampleValues: acc.samples,
	}

	// Rule 1: baseline cardinality.
	switch {
	case stat.Cardinality < e.ConditionCardinalityMax &&
		stat.NumUnique >= e.ConditionUniqueMin && stat.NumUnique <= e.ConditionUniqueMax:
		stat.Class = domain.FieldCondition
	case stat.Cardinality > e.TrialCardinalityMin || stat.NumUnique > e.TrialUniqueMax:
		stat.Class = domain.FieldTrialSpecific
	default:
		stat.Class = domain.FieldOptional
	}

	// Rule 2: import-metadata names never group.
	if nameMatches(acc.name, metadataNameParts, nil) {
		stat.Class = domain.FieldMetadata
		return stat
	}

	// Rule 3: trial/response/latency names never group either, regardless
	// of how few unique values the sample happened to contain.
	if nameMatches(acc.name, trialNameParts, trialExactNames) {
		stat.Class = domain.FieldTrialSpecific
		return stat
	}

	// Rule 4: condition-suggesting names are forced in, as long as the
	// field actually discriminates between at least two values and is not
	// nearly unique per trial.
	if nameMatches(acc.name, conditionNameParts, nil) &&
		stat.Cardinality < e.OverrideCardinalityMax &&
		stat.NumUnique >= e.ConditionUniqueMin {
		stat.Class = domain.FieldCondition
	}

	return stat
}

// selectGroupingFields ranks condition fields by the lexical priority table
// plus a discriminativeness bonus, then caps the list. If the top two
// candidates are both clearly experimenter-defined condition variables the
// cap is two; otherwise up to three. Crossing more fields than that
// multiplies groups and collapses per-group trial counts toward one.
func (e *DiscoveryEngine) selectGroupingFields(result *domain.DiscoveryResult) []string {
	type candidate struct {
		name  string
		base  float64
		score float64
	}

	var candidates []candidate
	for _, name := range result.Fields {
		stat := result.Stats[name]
		if stat.Class != domain.FieldCondition || stat.NumUnique < e.ConditionUniqueMin {
			continue
		}
		// Practice/training flags partition trials for exclusion, not for
		// averaging, so they never group.
		if nameMatches(name, practiceNameParts, nil) {
			continue
		}
		base := groupingPriority(name)
		candidates = append(candidates, candidate{
			name:  name,
			base:  base,
			score: base + (1-stat.Cardinality)*DefaultCardinalityBonus,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := e.MaxGroupingFields
	if len(candidates) >= 2 && candidates[0].base >= e.HighPriority && candidates[1].base >= e.HighPriority {
		limit = 2
	}
	if len(candidates) > limit {
		e.logger.Debug("capping grouping fields",
			zap.Int("candidates", len(candidates)), zap.Int("cap", limit))
		candidates = candidates[:limit]
	}

	fields := make([]string, len(candidates))
	for i, c := range candidates {
		fields[i] = c.name
	}
	return fields
}

func groupingPriority(name string) float64 {
	lower := strings.ToLower(name)
	for _, entry := range groupingPriorities {
		for _, part := range entry.parts {
			if strings.Contains(lower, part) {
				return entry.priority
			}
		}
	}
	return defaultGroupingPriority
}

// suggestValueMapping proposes canonical names for common boolean value
// encodings. This is a best-effort suggestion layer: it is surfaced in the
// discovery result so callers can drop or override entries before grouping.
func suggestValueMapping(name string, uniqueValues []string) map[string]string {
	if len(uniqueValues) == 0 || len(uniqueValues) > 2 {
		return nil
	}
	yesNo := true
	oneZero := true
	for _, v := range uniqueValues {
		switch strings.ToLower(v) {
		case "y", "n", "yes", "no":
			oneZero = false
		case "1", "0":
			yesNo = false
		default:
			return nil
		}
	}
	if !yesNo && !oneZero {
		return nil
	}

	pos, neg := booleanSemantics(name)
	mapping := map[string]string{}
	for _, v := range uniqueValues {
		switch strings.ToLower(v) {
		case "y", "yes", "1":
			mapping[v] = pos
		case "n", "no", "0":
			mapping[v] = neg
		}
	}
	return mapping
}

// booleanSemantics guesses what a yes/no field's poles mean from its name.
// The table is fixed and non-exhaustive; domain-specific codes may mis-map
// and callers are expected to review the suggestion.
func booleanSemantics(name string) (pos, neg string) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "word") || strings.Contains(lower, "lex"):
		return "word", "nonword"
	case strings.Contains(lower, "verb"):
		return "verb", "nonverb"
	case strings.Contains(lower, "target"):
		return "target", "nontarget"
	default:
		return "yes", "no"
	}
}

func isNegativeFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "n", "no", "false":
		return true
	}
	return false
}

// nameMatches reports whether the lowercased field name contains any of the
// substrings or equals any of the exact names.
func nameMatches(name string, parts, exacts []string) bool {
	lower := strings.ToLower(name)
	for _, exact := range exacts {
		if lower == exact {
			return true
		}
	}
	for _, part := range parts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
