package engine

import (
	"sort"
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
	"go.uber.org/zap"
)

// Selector applies the universal parser across the full event stream and
// partitions events into condition groups. It mutates nothing; its output
// is the grouping decision the epoching stage depends on.
type Selector struct {
	logger *zap.Logger
}

func NewSelector(logger *zap.Logger) *Selector {
	return &Selector{logger: logger}
}

// Select labels every event, buckets them by condition label, excludes
// practice groups unless asked not to, applies the allow-list, and returns
// groups sorted by descending member count (ties keep first-seen order).
// Groups with a single member are kept: judging sufficiency is the
// caller's job, correct grouping is ours.
func (s *Selector) Select(events []domain.RawEvent, structure domain.DetectedStructure, discovery *domain.DiscoveryResult, opts domain.SelectOpts) *domain.Selection {
	selection := &domain.Selection{TotalEvents: len(events)}

	discovery, selection.RejectedFields = s.applyOverride(discovery, opts.GroupingFields)
	selection.GroupingFields = discovery.GroupingFields

	labeler := NewLabeler(structure, discovery)

	byLabel := map[string]*domain.ConditionGroup{}
	var order []string
	for _, ev := range events {
		label, ok := labeler.Label(ev)
		if !ok {
			selection.SkippedEvents++
			continue
		}
		selection.LabeledEvents++

		group, exists := byLabel[label]
		if !exists {
			group = &domain.ConditionGroup{Label: label}
			byLabel[label] = group
			order = append(order, label)
		}
		group.Members = append(group.Members, ev.Index)
		if !group.IsPractice && isPracticeEvent(labeler, ev, label, discovery.PracticePatterns) {
			group.IsPractice = true
		}
	}

	groups := make([]domain.ConditionGroup, 0, len(order))
	for _, label := range order {
		group := byLabel[label]
		if group.IsPractice && !opts.IncludePractice {
			s.logger.Debug("excluding practice group",
				zap.String("label", group.Label), zap.Int("members", group.Count()))
			continue
		}
		if len(opts.AllowList) > 0 && !labelAllowed(group.Label, opts.AllowList) {
			continue
		}
		groups = append(groups, *group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count() > groups[j].Count()
	})
	selection.Groups = groups

	s.logger.Info("event selection complete",
		zap.Int("events", selection.TotalEvents),
		zap.Int("labeled", selection.LabeledEvents),
		zap.Int("skipped", selection.SkippedEvents),
		zap.Int("groups", len(groups)))

	return selection
}

// applyOverride validates a caller-supplied grouping-field list against the
// discovered fields. Invalid names are reported, not silently dropped; the
// valid subset is used, and if nothing survives the heuristic defaults
// stand.
func (s *Selector) applyOverride(discovery *domain.DiscoveryResult, override []string) (*domain.DiscoveryResult, []string) {
	if len(override) == 0 {
		return discovery, nil
	}

	var valid, rejected []string
	for _, name := range override {
		if discovery.HasField(name) {
			valid = append(valid, name)
		} else {
			rejected = append(rejected, name)
		}
	}
	if len(rejected) > 0 {
		s.logger.Warn("grouping override fields not found in discovered schema",
			zap.Strings("rejected", rejected))
	}
	if len(valid) == 0 {
		return discovery, rejected
	}
	return discovery.WithGroupingFields(valid), rejected
}

// isPracticeEvent checks the condition label and the raw field values
// against the discovered practice patterns. Short patterns (single
// characters such as a bare "y" flag) only match exact field values, never
// label substrings.
func isPracticeEvent(labeler *Labeler, ev domain.RawEvent, label string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	var fields map[string]string
	for _, pattern := range patterns {
		if len(pattern) >= 2 && strings.Contains(label, pattern) {
			return true
		}
		if fields == nil {
			fields = labeler.Fields(ev)
		}
		for name, value := range fields {
			if value == pattern && nameMatches(name, practiceNameParts, nil) {
				return true
			}
		}
	}
	return false
}

func labelAllowed(label string, allowList []string) bool {
	for _, allowed := range allowList {
		if strings.Contains(label, allowed) {
			return true
		}
	}
	return false
}
