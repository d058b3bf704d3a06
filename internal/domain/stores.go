package domain

import (
	"context"

	"github.com/google/uuid"
)

// RunStore persists analysis runs and their per-condition ERP summaries.
type RunStore interface {
	CreateRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]AnalysisRun, error)
	CreateSummary(ctx context.Context, runID uuid.UUID, summary *EpochSummary, fingerprint []float32) error
	ListSummaries(ctx context.Context, runID uuid.UUID) ([]EpochSummary, error)
	GetSummaryFingerprint(ctx context.Context, runID uuid.UUID, eventType string) ([]float32, error)
	FindSimilarWaveforms(ctx context.Context, fingerprint []float32, limit int) ([]SimilarWaveform, error)
}

// FieldDigest is the serialized description of discovered fields handed to
// the external classifier: names, cardinalities, and a few sample values.
type FieldDigest struct {
	SampleCount int         `json:"sample_count"`
	Fields      []FieldStat `json:"fields"`
}

// GroupingSuggestion is a classifier's proposed override for the heuristic
// grouping decision. Field names must be validated against the discovery
// result before being applied.
type GroupingSuggestion struct {
	GroupingFields []string                     `json:"grouping_fields"`
	ValueMappings  map[string]map[string]string `json:"value_mappings,omitempty"`
}

// ClassifierClient is the optional AI-assisted classification collaborator.
// It may be slow or failing; callers invoke it with a timeout and fall back
// to the heuristic classification on any error.
type ClassifierClient interface {
	SuggestGrouping(ctx context.Context, digest FieldDigest) (*GroupingSuggestion, error)
}
