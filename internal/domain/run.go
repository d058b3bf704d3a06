package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun is one persisted pipeline invocation: the detected structure,
// the discovery result, and the final per-condition trial counts.
type AnalysisRun struct {
	ID          uuid.UUID         `json:"id"`
	Structure   DetectedStructure `json:"structure"`
	Discovery   *DiscoveryResult  `json:"discovery"`
	GroupCounts map[string]int    `json:"group_counts"`
	EventCount  int               `json:"event_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SimilarWaveform is one hit from a cross-run ERP fingerprint lookup.
type SimilarWaveform struct {
	RunID     uuid.UUID `json:"run_id"`
	EventType string    `json:"event_type"`
	Score     float64   `json:"score"`
}
