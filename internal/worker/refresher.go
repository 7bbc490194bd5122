// Package worker contains the background refresher that keeps the dashboard
// aggregate and alert evaluation warm between requests. It is intentionally
// decoupled from the HTTP layer: the refresher consumes the same engine
// facade the handlers do and never touches the router.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// Refreshable is the slice of the engine the refresher consumes.
type Refreshable interface {
	Dashboard(ctx context.Context) model.DashboardData
	EvaluateAlerts(ctx context.Context) []model.AlertData
}

// RefresherConfig holds tuning parameters for the Refresher. All fields have
// sensible defaults if zero-valued.
type RefresherConfig struct {
	// Interval is how often the dashboard is recomputed. Default: 5m.
	Interval time.Duration

	// Timeout is the per-cycle context deadline. Set this longer than the AI
	// provider's p99 latency: a cold cycle may run a full forecast. Default: 2m.
	Timeout time.Duration
}

// Refresher periodically recomputes the dashboard aggregate so the first
// request after a cache expiry does not pay the full forecast cost, and logs
// any alerts that crossed their thresholds.
type Refresher struct {
	engine Refreshable
	cfg    RefresherConfig
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewRefresher constructs a Refresher. Call Start() to begin refreshing.
func NewRefresher(engine Refreshable, cfg RefresherConfig, logger *slog.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Refresher{engine: engine, cfg: cfg, logger: logger}
}

// Start launches the refresh loop. It blocks until ctx is cancelled. Call it
// in a goroutine from main:
//
//	go refresher.Start(ctx)
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("refresher: starting", "interval", r.cfg.Interval)

	r.wg.Add(1)
	go r.loop(ctx)

	r.wg.Wait()
	r.logger.Info("refresher: stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately so the dashboard is warm right after startup.
	r.refreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	data := r.engine.Dashboard(cycleCtx)

	alerts := r.engine.EvaluateAlerts(cycleCtx)
	for _, a := range alerts {
		r.logger.Warn("refresher: alert threshold crossed",
			"alert_type", a.AlertType,
			"risk_score", a.RiskScore,
			"threshold", a.Threshold,
		)
	}

	r.logger.Info("refresher: cycle complete",
		"bed_stress", data.BedStressCurrent,
		"staff_risk", data.StaffRiskCurrent,
		"active_alerts", data.ActiveAlertsCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
