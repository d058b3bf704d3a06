package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evokedlab/evoked/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// RunStore persists analysis runs and per-condition ERP summaries.
// Waveform fingerprints are stored as pgvector embeddings so similar ERPs
// can be found across sessions.
type RunStore struct {
	db *pgxpool.Pool
}

func NewRunStore(db *pgxpool.Pool) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run *domain.AnalysisRun) error {
	discovery, err := json.Marshal(run.Discovery)
	if err != nil {
		return fmt.Errorf("marshal discovery result: %w", err)
	}
	groupCounts, err := json.Marshal(run.GroupCounts)
	if err != nil {
		return fmt.Errorf("marshal group counts: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO analysis_runs (id, format, confidence, event_pattern, discovery, group_counts, event_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		run.ID, run.Structure.Format, run.Structure.Confidence, run.Structure.EventPattern,
		discovery, groupCounts, run.EventCount,
	).Scan(&run.CreatedAt)
}

func (s *RunStore) GetRun(ctx context.Context, id uuid.UUID) (*domain.AnalysisRun, error) {
	run := &domain.AnalysisRun{}
	var discovery, groupCounts []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, format, confidence, event_pattern, discovery, group_counts, event_count, created_at
		 FROM analysis_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.Structure.Format, &run.Structure.Confidence, &run.Structure.EventPattern,
		&discovery, &groupCounts, &run.EventCount, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(discovery, &run.Discovery); err != nil {
		return nil, fmt.Errorf("unmarshal discovery result: %w", err)
	}
	if err := json.Unmarshal(groupCounts, &run.GroupCounts); err != nil {
		return nil, fmt.Errorf("unmarshal group counts: %w", err)
	}
	return run, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, format, confidence, event_pattern, discovery, group_counts, event_count, created_at
		 FROM analysis_runs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.AnalysisRun
	for rows.Next() {
		var run domain.AnalysisRun
		var discovery, groupCounts []byte
		if err := rows.Scan(&run.ID, &run.Structure.Format, &run.Structure.Confidence, &run.Structure.EventPattern,
			&discovery, &groupCounts, &run.EventCount, &run.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(discovery, &run.Discovery); err != nil {
			return nil, fmt.Errorf("unmarshal discovery result: %w", err)
		}
		if err := json.Unmarshal(groupCounts, &run.GroupCounts); err != nil {
			return nil, fmt.Errorf("unmarshal group counts: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *RunStore) CreateSummary(ctx context.Context, runID uuid.UUID, summary *domain.EpochSummary, fingerprint []float32) error {
	var vec *pgvector.Vector
	if len(fingerprint) > 0 {
		v := pgvector.NewVector(fingerprint)
		vec = &v
	}

	waveforms, err := json.Marshal(map[string]any{
		"time_vector": summary.TimeVector,
		"avg_erp":     sanitizeMatrix(summary.AvgERP),
		"std_erp":     sanitizeMatrix(summary.StdERP),
	})
	if err != nil {
		return fmt.Errorf("marshal waveforms: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO erp_summaries (run_id, event_type, num_epochs, dropped_epochs, good_epochs, mean_snr_db, mean_p2p_amplitude, waveforms, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		runID, summary.EventType, summary.NumEpochs, summary.DroppedEpochs,
		summary.Metrics.GoodEpochs, summary.Metrics.MeanSNRdB, summary.Metrics.MeanP2PAmplitude,
		waveforms, vec,
	)
	return err
}

func (s *RunStore) ListSummaries(ctx context.Context, runID uuid.UUID) ([]domain.EpochSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT event_type, num_epochs, dropped_epochs, good_epochs, mean_snr_db, mean_p2p_amplitude, waveforms
		 FROM erp_summaries WHERE run_id = $1
		 ORDER BY num_epochs DESC, event_type ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.EpochSummary
	for rows.Next() {
		var summary domain.EpochSummary
		var waveforms []byte
		if err := rows.Scan(&summary.EventType, &summary.NumEpochs, &summary.DroppedEpochs,
			&summary.Metrics.GoodEpochs, &summary.Metrics.MeanSNRdB, &summary.Metrics.MeanP2PAmplitude,
			&waveforms); err != nil {
			return nil, err
		}
		summary.Metrics.NumEpochs = summary.NumEpochs

		var wf struct {
			TimeVector []float64   `json:"time_vector"`
			AvgERP     [][]float64 `json:"avg_erp"`
			StdERP     [][]float64 `json:"std_erp"`
		}
		if err := json.Unmarshal(waveforms, &wf); err != nil {
			return nil, fmt.Errorf("unmarshal waveforms: %w", err)
		}
		summary.TimeVector = wf.TimeVector
		summary.AvgERP = wf.AvgERP
		summary.StdERP = wf.StdERP

		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *RunStore) GetSummaryFingerprint(ctx context.Context, runID uuid.UUID, eventType string) ([]float32, error) {
	var vec pgvector.Vector
	err := s.db.QueryRow(ctx,
		`SELECT fingerprint FROM erp_summaries
		 WHERE run_id = $1 AND event_type = $2 AND fingerprint IS NOT NULL`,
		runID, eventType,
	).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return vec.Slice(), nil
}

func (s *RunStore) FindSimilarWaveforms(ctx context.Context, fingerprint []float32, limit int) ([]domain.SimilarWaveform, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(fingerprint)

	rows, err := s.db.Query(ctx,
		`SELECT run_id, event_type, 1 - (fingerprint <=> $1) AS score
		 FROM erp_summaries
		 WHERE fingerprint IS NOT NULL
		 ORDER BY fingerprint <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("similar waveforms query: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarWaveform
	for rows.Next() {
		var sw domain.SimilarWaveform
		if err := rows.Scan(&sw.RunID, &sw.EventType, &sw.Score); err != nil {
			return nil, fmt.Errorf("scan similar waveform row: %w", err)
		}
		results = append(results, sw)
	}
	return results, rows.Err()
}

// sanitizeMatrix replaces NaN with nil entries so the waveforms survive
// JSON encoding. NaN appears only in zero-epoch summaries.
func sanitizeMatrix(m [][]float64) [][]any {
	if m == nil {
		return nil
	}
	out := make([][]any, len(m))
	for r, row := range m {
		out[r] = make([]any, len(row))
		for c, v := range row {
			if v != v { // NaN
				out[r][c] = nil
			} else {
				out[r][c] = v
			}
		}
	}
	return out
}
