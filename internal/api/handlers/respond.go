package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/evokedlab/evoked/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// summaryResponse mirrors domain.EpochSummary with NaN-free JSON: zero-epoch
// groups carry NaN waveforms internally, which encoding/json rejects, so
// NaN becomes null on the wire.
type summaryResponse struct {
	EventType     string         `json:"event_type"`
	NumEpochs     int            `json:"num_epochs"`
	DroppedEpochs int            `json:"dropped_epochs"`
	TimeVector    []float64      `json:"time_vector"`
	AvgERP        [][]*float64   `json:"avg_erp"`
	StdERP        [][]*float64   `json:"std_erp"`
	Metrics       metricsPayload `json:"metrics"`
}

type metricsPayload struct {
	MeanSNRdB        *float64 `json:"mean_snr_db"`
	MeanP2PAmplitude *float64 `json:"mean_p2p_amplitude"`
	GoodEpochs       int      `json:"good_epochs"`
	NumEpochs        int      `json:"num_epochs"`
}

func toSummaryResponse(s *domain.EpochSummary) summaryResponse {
	return summaryResponse{
		EventType:     s.EventType,
		NumEpochs:     s.NumEpochs,
		DroppedEpochs: s.DroppedEpochs,
		TimeVector:    s.TimeVector,
		AvgERP:        nullableMatrix(s.AvgERP),
		StdERP:        nullableMatrix(s.StdERP),
		Metrics: metricsPayload{
			MeanSNRdB:        nullableFloat(s.Metrics.MeanSNRdB),
			MeanP2PAmplitude: nullableFloat(s.Metrics.MeanP2PAmplitude),
			GoodEpochs:       s.Metrics.GoodEpochs,
			NumEpochs:        s.Metrics.NumEpochs,
		},
	}
}

func toSummaryResponses(summaries []domain.EpochSummary) []summaryResponse {
	out := make([]summaryResponse, len(summaries))
	for i := range summaries {
		out[i] = toSummaryResponse(&summaries[i])
	}
	return out
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullableMatrix(m [][]float64) [][]*float64 {
	if m == nil {
		return nil
	}
	out := make([][]*float64, len(m))
	for r, row := range m {
		out[r] = make([]*float64, len(row))
		for c := range row {
			out[r][c] = nullableFloat(row[c])
		}
	}
	return out
}
