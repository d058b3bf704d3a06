package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evokedlab/evoked/internal/engine"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testHandler() *AnalysisHandler {
	pipeline := engine.NewPipeline(nil, nil, zap.NewNop())
	return NewAnalysisHandler(pipeline, nil)
}

func lexicalEventRequests() []rawEventRequest {
	cells := []struct {
		cond, word string
		count      int
	}{
		{"G23", "y", 38}, {"SG23", "n", 35}, {"G11", "y", 48},
		{"SG11", "n", 45}, {"G05", "y", 50}, {"SG05", "n", 45},
	}
	var events []rawEventRequest
	trial := 0
	for _, c := range cells {
		for i := 0; i < c.count; i++ {
			trial++
			events = append(events, rawEventRequest{
				Onset: float64(trial) * 1.5,
				Label: fmt.Sprintf("stim[cond: %s, word: %s, trial: %d]", c.cond, c.word, trial),
			})
		}
	}
	return events
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestAnalysisHandler_Discover(t *testing.T) {
	h := testHandler()

	rec := postJSON(t, h.Discover, discoverRequest{Events: lexicalEventRequests()})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp discoverResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Structure.Format != "bracket" {
		t.Errorf("format = %s, want bracket", resp.Structure.Format)
	}
	if len(resp.Discovery.GroupingFields) != 2 {
		t.Errorf("grouping fields = %v, want [cond word]", resp.Discovery.GroupingFields)
	}
}

func TestAnalysisHandler_DiscoverValidation(t *testing.T) {
	h := testHandler()

	rec := postJSON(t, h.Discover, discoverRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty events: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	raw := httptest.NewRecorder()
	h.Discover(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", raw.Code)
	}
}

func TestAnalysisHandler_Create(t *testing.T) {
	h := testHandler()

	rec := postJSON(t, h.Create, runRequest{Events: lexicalEventRequests()})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		RunID     uuid.UUID `json:"run_id"`
		Selection struct {
			Groups []struct {
				Label string `json:"label"`
			} `json:"groups"`
		} `json:"selection"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID == uuid.Nil {
		t.Error("run_id missing")
	}
	if len(resp.Selection.Groups) != 6 {
		t.Errorf("groups = %d, want 6", len(resp.Selection.Groups))
	}
}

func TestAnalysisHandler_CreateValidation(t *testing.T) {
	h := testHandler()

	t.Run("events required", func(t *testing.T) {
		rec := postJSON(t, h.Create, runRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("sample rate required with signal", func(t *testing.T) {
		rec := postJSON(t, h.Create, runRequest{
			Events: lexicalEventRequests(),
			Signal: [][]float64{{1, 2, 3}},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid window rejected", func(t *testing.T) {
		rec := postJSON(t, h.Create, map[string]any{
			"events":      lexicalEventRequests(),
			"sample_rate": 10,
			"signal":      [][]float64{make([]float64, 5000)},
			"window":      map[string]float64{"start": 0.5, "end": -0.5},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
