package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/evokedlab/evoked/internal/api/handlers"
	mw "github.com/evokedlab/evoked/internal/api/middleware"
	"github.com/evokedlab/evoked/internal/config"
	"github.com/evokedlab/evoked/internal/domain"
	"github.com/evokedlab/evoked/internal/engine"
	"github.com/evokedlab/evoked/internal/llm"
	"github.com/evokedlab/evoked/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router plus request counters for the metrics endpoint.
type App struct {
	Router       *chi.Mux
	Pipeline     *engine.Pipeline
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	runStore := store.NewRunStore(db)

	// Optional AI classification collaborator. When unconfigured or
	// failing to initialize, the engine runs purely on heuristics.
	var classifier domain.ClassifierClient
	if provider := config.ClassifierProvider(); provider != "" {
		client, err := llm.NewClient(provider, config.ClassifierAPIKey())
		if err != nil {
			logger.Warn("classifier initialization failed, heuristics only",
				zap.String("provider", provider), zap.Error(err))
		} else {
			classifier = client
			logger.Info("classifier initialized", zap.String("provider", provider))
		}
	}

	pipeline := engine.NewPipeline(classifier, runStore, logger)
	pipeline.ClassifierTimeout = config.ClassifierTimeout()
	pipeline.Epocher.ArtifactThreshold = config.ArtifactThreshold()
	pipeline.Epocher.Workers = config.EpochWorkers()

	analysisHandler := handlers.NewAnalysisHandler(pipeline, runStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Pipeline:  pipeline,
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.countRequests)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", analysisHandler.Create)
			r.Get("/", analysisHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", analysisHandler.GetByID)
				r.Get("/summaries", analysisHandler.ListSummaries)
			})
		})
		r.Post("/discover", analysisHandler.Discover)
		r.Post("/summaries/similar", analysisHandler.Similar)
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

func (app *App) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.requestCount.Add(1)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= http.StatusInternalServerError {
			app.errorCount.Add(1)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.RunStore         = (*store.RunStore)(nil)
	_ domain.ClassifierClient = (*llm.OpenAIClient)(nil)
	_ domain.ClassifierClient = (*llm.AnthropicClient)(nil)
	_ domain.ClassifierClient = (*llm.MockClient)(nil)
)
