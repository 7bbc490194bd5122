// Package api implements the HTTP layer for the hospital stress engine.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/predict"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string
}

// Engine is the slice of the prediction facade the HTTP layer consumes.
type Engine interface {
	Forecast(ctx context.Context, horizonDays int) model.Forecast
	StaffRisk(ctx context.Context, predictedAdmissions, currentStaff int) model.StaffRiskScore
	Recommend(ctx context.Context, bedStress, staffRisk float64) []model.Recommendation
	SimulateScenario(ctx context.Context, params predict.ScenarioParams) (model.ScenarioResult, error)
	Dashboard(ctx context.Context) model.DashboardData
	EvaluateAlerts(ctx context.Context) []model.AlertData
	InvalidateCache(ctx context.Context) error
	Crises(ctx context.Context, limit int) ([]model.CrisisLesson, error)
	StoreCrisis(ctx context.Context, lesson model.CrisisLesson) error
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	engine Engine
	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(engine Engine, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health & metrics ──────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Route("/predictions", func(r chi.Router) {
			r.Get("/forecast", s.handleForecast)
			r.Get("/staff-risk", s.handleStaffRisk)
			r.Post("/recommendations", s.handleRecommendations)
			r.Post("/scenario", s.handleScenario)
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/alerts", s.handleAlerts)

		r.Route("/crises", func(r chi.Router) {
			r.Get("/", s.handleListCrises)
			r.Post("/", s.handleStoreCrisis)
		})

		// Invoked by the ingestion pipeline after new capacity data lands.
		r.Post("/cache/invalidate", s.handleInvalidateCache)
	})

	return r
}
