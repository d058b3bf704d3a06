package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/evokedlab/evoked/internal/domain"
	"github.com/evokedlab/evoked/internal/engine"
	"github.com/evokedlab/evoked/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AnalysisHandler struct {
	pipeline *engine.Pipeline
	runs     domain.RunStore
}

func NewAnalysisHandler(pipeline *engine.Pipeline, runs domain.RunStore) *AnalysisHandler {
	return &AnalysisHandler{pipeline: pipeline, runs: runs}
}

type rawEventRequest struct {
	Onset float64           `json:"onset"`
	Label string            `json:"label"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type runRequest struct {
	Events          []rawEventRequest        `json:"events"`
	SampleRate      float64                  `json:"sample_rate,omitempty"`
	Signal          [][]float64              `json:"signal,omitempty"`
	Channels        []domain.ChannelLocation `json:"channels,omitempty"`
	Window          *domain.Window           `json:"window,omitempty"`
	GroupingFields  []string                 `json:"grouping_fields,omitempty"`
	AllowList       []string                 `json:"allow_list,omitempty"`
	IncludePractice bool                     `json:"include_practice"`
}

// DefaultWindow is used when the caller does not supply an epoch extent:
// 200 ms pre-stimulus baseline, 800 ms post-stimulus.
var DefaultWindow = domain.Window{Start: -0.2, End: 0.8}

type runResponse struct {
	RunID     uuid.UUID                `json:"run_id"`
	Structure domain.DetectedStructure `json:"structure"`
	Discovery *domain.DiscoveryResult  `json:"discovery"`
	Selection *domain.Selection        `json:"selection"`
	Summaries []summaryResponse        `json:"summaries,omitempty"`
}

func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events are required")
		return
	}

	input := engine.RunInput{
		Events: toRawEvents(req.Events),
		Window: DefaultWindow,
		Select: domain.SelectOpts{
			GroupingFields:  req.GroupingFields,
			AllowList:       req.AllowList,
			IncludePractice: req.IncludePractice,
		},
	}
	if req.Window != nil {
		input.Window = *req.Window
	}
	if len(req.Signal) > 0 {
		if req.SampleRate <= 0 {
			writeError(w, http.StatusBadRequest, "sample_rate is required with a signal matrix")
			return
		}
		input.Recording = &domain.Recording{
			Data:       req.Signal,
			SampleRate: req.SampleRate,
			Channels:   req.Channels,
		}
	}

	result, err := h.pipeline.Run(r.Context(), input)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, runResponse{
		RunID:     result.RunID,
		Structure: result.Structure,
		Discovery: result.Discovery,
		Selection: result.Selection,
		Summaries: toSummaryResponses(result.Summaries),
	})
}

type discoverRequest struct {
	Events []rawEventRequest `json:"events"`
}

type discoverResponse struct {
	Structure domain.DetectedStructure `json:"structure"`
	Discovery *domain.DiscoveryResult  `json:"discovery"`
}

// Discover runs only the read-only analyses so a frontend can show the
// field-classification table before the user commits to a full run.
func (h *AnalysisHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "events are required")
		return
	}

	structure, discovery := h.pipeline.Discover(r.Context(), toRawEvents(req.Events))
	writeJSON(w, http.StatusOK, discoverResponse{Structure: structure, Discovery: discovery})
}

func (h *AnalysisHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *AnalysisHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	summaries, err := h.runs.ListSummaries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": toSummaryResponses(summaries)})
}

type similarRequest struct {
	RunID     string `json:"run_id"`
	EventType string `json:"event_type"`
	Limit     int    `json:"limit,omitempty"`
}

// Similar finds ERP summaries across all stored runs whose average
// waveform fingerprint is closest to the given summary's.
func (h *AnalysisHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run_id")
		return
	}

	fingerprint, err := h.runs.GetSummaryFingerprint(r.Context(), runID, req.EventType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "summary not found or has no waveform")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load summary fingerprint")
		return
	}

	matches, err := h.runs.FindSimilarWaveforms(r.Context(), fingerprint, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func toRawEvents(reqs []rawEventRequest) []domain.RawEvent {
	events := make([]domain.RawEvent, len(reqs))
	for i, ev := range reqs {
		events[i] = domain.RawEvent{
			Index: i,
			Onset: ev.Onset,
			Label: ev.Label,
			Attrs: ev.Attrs,
		}
	}
	return events
}
