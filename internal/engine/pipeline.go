package engine

import (
	"context"
	"time"

	"github.com/evokedlab/evoked/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultClassifierTimeout bounds the optional AI classification call. The
// collaborator may be slow or down; past the deadline the heuristic
// classification stands.
const DefaultClassifierTimeout = 10 * time.Second

// Pipeline runs the full analysis: structure detection, field discovery,
// optional AI-assisted grouping suggestion, selection, and epoching. The
// classifier and store are both optional; a nil store skips persistence and
// a nil classifier skips the suggestion step.
type Pipeline struct {
	Detector  *StructureDetector
	Discovery *DiscoveryEngine
	Selector  *Selector
	Epocher   *Epocher

	ClassifierTimeout time.Duration

	classifier domain.ClassifierClient
	store      domain.RunStore
	logger     *zap.Logger
}

func NewPipeline(classifier domain.ClassifierClient, store domain.RunStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Detector:          NewStructureDetector(logger),
		Discovery:         NewDiscoveryEngine(logger),
		Selector:          NewSelector(logger),
		Epocher:           NewEpocher(logger),
		ClassifierTimeout: DefaultClassifierTimeout,
		classifier:        classifier,
		store:             store,
		logger:            logger,
	}
}

// RunInput is one batch analysis request. Recording is optional: without a
// signal matrix the pipeline stops after selection.
type RunInput struct {
	Events    []domain.RawEvent
	Recording *domain.Recording
	Window    domain.Window
	Select    domain.SelectOpts
}

// RunResult is everything the GUI/reporting layer needs: the structure and
// discovery for the field-classification table, the selection with counts,
// and the per-condition ERP summaries.
type RunResult struct {
	RunID     uuid.UUID                `json:"run_id"`
	Structure domain.DetectedStructure `json:"structure"`
	Discovery *domain.DiscoveryResult  `json:"discovery"`
	Selection *domain.Selection        `json:"selection"`
	Summaries []domain.EpochSummary    `json:"summaries,omitempty"`
}

// Discover runs only the read-only analyses: structure detection, field
// discovery, and the optional classifier suggestion. Used by callers that
// present the field-classification table before committing to a full run.
func (p *Pipeline) Discover(ctx context.Context, events []domain.RawEvent) (domain.DetectedStructure, *domain.DiscoveryResult) {
	structure := p.Detector.Detect(events)
	discovery := p.Discovery.Discover(events, structure)
	p.applyClassifierSuggestion(ctx, discovery)
	return structure, discovery
}

// Run executes the full pipeline. Persistence failures are logged, never
// fatal: the analysis result is returned regardless.
func (p *Pipeline) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	structure, discovery := p.Discover(ctx, input.Events)
	selection := p.Selector.Select(input.Events, structure, discovery, input.Select)

	result := &RunResult{
		RunID:     uuid.New(),
		Structure: structure,
		Discovery: discovery,
		Selection: selection,
	}

	if input.Recording != nil && input.Recording.NumChannels() > 0 {
		summaries, err := p.Epocher.Summarize(input.Recording, input.Events, selection.Groups, input.Window)
		if err != nil {
			return nil, err
		}
		result.Summaries = summaries
	}

	p.persist(ctx, result, len(input.Events))
	return result, nil
}

// applyClassifierSuggestion asks the external classifier for a grouping
// override and applies the validated subset in place. Any failure, timeout,
// or malformed response leaves the heuristic classification untouched.
func (p *Pipeline) applyClassifierSuggestion(ctx context.Context, discovery *domain.DiscoveryResult) {
	if p.classifier == nil || len(discovery.Fields) == 0 {
		return
	}

	digest := domain.FieldDigest{SampleCount: discovery.SampleCount}
	for _, name := range discovery.Fields {
		digest.Fields = append(digest.Fields, *discovery.Stats[name])
	}

	ctx, cancel := context.WithTimeout(ctx, p.ClassifierTimeout)
	defer cancel()

	suggestion, err := p.classifier.SuggestGrouping(ctx, digest)
	if err != nil {
		p.logger.Warn("classifier suggestion failed, keeping heuristic grouping", zap.Error(err))
		return
	}
	if suggestion == nil {
		return
	}

	var valid, rejected []string
	for _, name := range suggestion.GroupingFields {
		if discovery.HasField(name) {
			valid = append(valid, name)
		} else {
			rejected = append(rejected, name)
		}
	}
	if len(rejected) > 0 {
		p.logger.Warn("classifier suggested unknown fields, ignoring them",
			zap.Strings("rejected", rejected))
	}
	if len(valid) == 0 {
		return
	}
	if limit := p.Discovery.MaxGroupingFields; len(valid) > limit {
		valid = valid[:limit]
	}
	discovery.GroupingFields = valid

	for name, mapping := range suggestion.ValueMappings {
		if !discovery.HasField(name) {
			continue
		}
		discovery.ValueMappings[name] = mapping
	}

	p.logger.Info("applied classifier grouping suggestion",
		zap.Strings("grouping_fields", valid))
}

func (p *Pipeline) persist(ctx context.Context, result *RunResult, eventCount int) {
	if p.store == nil {
		return
	}

	run := &domain.AnalysisRun{
		ID:          result.RunID,
		Structure:   result.Structure,
		Discovery:   result.Discovery,
		GroupCounts: result.Selection.Counts(),
		EventCount:  eventCount,
	}
	if err := p.store.CreateRun(ctx, run); err != nil {
		p.logger.Error("failed to persist analysis run", zap.Error(err))
		return
	}

	for i := range result.Summaries {
		summary := &result.Summaries[i]
		var fingerprint []float32
		if summary.NumEpochs > 0 {
			fingerprint = WaveformFingerprint(summary.AvgERP, FingerprintDim)
		}
		if err := p.store.CreateSummary(ctx, run.ID, summary, fingerprint); err != nil {
			p.logger.Error("failed to persist epoch summary",
				zap.String("event_type", summary.EventType), zap.Error(err))
		}
	}
}
