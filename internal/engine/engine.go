// Package engine orchestrates the prediction core behind a single facade:
// it loads history, runs the predictors, enriches recommendations with
// retrieved crisis lessons, and owns the cache-key scheme and invalidation
// contract. The engine is stateless between calls except for the shared
// cache; every operation is safe to run concurrently.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/ai"
	"github.com/wardsignal/hospital-stress-backend/internal/cache"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/predict"
	"github.com/wardsignal/hospital-stress-backend/internal/rag"
)

// HistorySource is the slice of the capacity store the engine consumes.
// Implementations must return empty slices, not errors, when no rows match.
type HistorySource interface {
	RecordsSince(ctx context.Context, cutoff time.Time) ([]model.CapacityRecord, error)
	OverloadsSince(ctx context.Context, cutoff time.Time) ([]model.CapacityRecord, error)
}

// CrisisStore persists and lists crisis lessons.
type CrisisStore interface {
	ListCrises(ctx context.Context, limit int) ([]model.CrisisLesson, error)
	InsertCrisis(ctx context.Context, lesson model.CrisisLesson) error
}

// Config carries the engine's tuning values. TTLs come from configuration,
// never hardcoded in operation logic.
type Config struct {
	TotalBedCapacity  int
	HistoryWindowDays int

	ForecastTTL       time.Duration
	StaffRiskTTL      time.Duration
	RecommendationTTL time.Duration
	DashboardTTL      time.Duration

	BedStressAlertThreshold float64
	StaffRiskAlertThreshold float64
}

func (c *Config) applyDefaults() {
	if c.TotalBedCapacity <= 0 {
		c.TotalBedCapacity = 500
	}
	if c.HistoryWindowDays <= 0 {
		c.HistoryWindowDays = 180
	}
	if c.BedStressAlertThreshold <= 0 {
		c.BedStressAlertThreshold = model.HighRiskBedStress
	}
	if c.StaffRiskAlertThreshold <= 0 {
		c.StaffRiskAlertThreshold = model.CriticalStaffRisk
	}
}

// Engine is the orchestration facade. Construct with New; the zero value is
// not usable.
type Engine struct {
	history HistorySource
	crises  CrisisStore
	cache   cache.Cache

	forecaster  *predict.ForecastGenerator
	recommender *predict.RecommendationEngine
	retriever   *rag.Retriever

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New wires the engine from its collaborators. gen may be nil; every AI path
// then degrades to its deterministic fallback.
func New(history HistorySource, crises CrisisStore, c cache.Cache, gen ai.Generator, cfg Config, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	return &Engine{
		history:     history,
		crises:      crises,
		cache:       c,
		forecaster:  predict.NewForecastGenerator(gen, cfg.TotalBedCapacity, logger),
		recommender: predict.NewRecommendationEngine(gen, logger),
		retriever:   rag.NewRetriever(crises, logger),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// ─── Cache scheme ─────────────────────────────────────────────────────────────

// cacheNamespace prefixes every engine key so a single pattern invalidation
// covers all cached results, the dashboard aggregate included.
const cacheNamespace = "prediction"

// envelopeSchema versions the cached payload layout. A schema mismatch on
// read is treated as a miss, so layout changes never require a cache flush.
const envelopeSchema = "v1"

type envelope struct {
	Schema  string          `json:"schema"`
	Payload json.RawMessage `json:"payload"`
}

func cacheKey(op string, args ...any) string {
	sum := sha256.Sum256([]byte(op + ":" + fmt.Sprint(args...)))
	return fmt.Sprintf("%s:%x", cacheNamespace, sum)
}

// cacheGet loads and decodes a cached envelope into dst. Any failure — miss,
// transport error, schema mismatch, decode error — reads as a miss; only
// unexpected errors are logged.
func (e *Engine) cacheGet(ctx context.Context, op, key string, dst any) bool {
	raw, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.logger.Warn("engine: cache read failed, treating as miss", "operation", op, "error", err)
		}
		cacheMisses.WithLabelValues(op).Inc()
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Schema != envelopeSchema {
		cacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		e.logger.Warn("engine: cached payload undecodable, treating as miss", "operation", op, "error", err)
		cacheMisses.WithLabelValues(op).Inc()
		return false
	}

	cacheHits.WithLabelValues(op).Inc()
	return true
}

// cacheSet stores v wrapped in a versioned envelope. Write failures are
// logged and swallowed; the computed result is still returned to the caller.
func (e *Engine) cacheSet(ctx context.Context, op, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn("engine: cache encode failed", "operation", op, "error", err)
		return
	}
	raw, err := json.Marshal(envelope{Schema: envelopeSchema, Payload: payload})
	if err != nil {
		e.logger.Warn("engine: envelope encode failed", "operation", op, "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, raw, ttl); err != nil {
		e.logger.Warn("engine: cache write failed", "operation", op, "error", err)
	}
}

// InvalidateCache clears every prediction-namespaced key. Invoked by the
// ingestion collaborator after new data lands; an invalidation racing an
// in-flight read is harmless, the read just returns stale or fresh data.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	if err := e.cache.Invalidate(ctx, cacheNamespace+":*"); err != nil {
		return fmt.Errorf("engine: invalidate cache: %w", err)
	}
	return nil
}

// ─── History loading ──────────────────────────────────────────────────────────

// loadHistory fetches the trailing history window. A store failure degrades
// to empty history with a log line; the forecast fallback then covers it.
func (e *Engine) loadHistory(ctx context.Context) []model.CapacityRecord {
	cutoff := e.now().AddDate(0, 0, -e.cfg.HistoryWindowDays)
	records, err := e.history.RecordsSince(ctx, cutoff)
	if err != nil {
		e.logger.Warn("engine: history load failed, proceeding with empty history", "error", err)
		return nil
	}
	return records
}

func (e *Engine) loadOverloads(ctx context.Context) []model.CapacityRecord {
	cutoff := e.now().AddDate(0, 0, -e.cfg.HistoryWindowDays)
	overloads, err := e.history.OverloadsSince(ctx, cutoff)
	if err != nil {
		e.logger.Warn("engine: overload history load failed, proceeding without", "error", err)
		return nil
	}
	return overloads
}

// recentAverages returns mean admissions and staffing over the last week of
// history, with fixed defaults when no history exists.
func recentAverages(history []model.CapacityRecord) (avgAdmissions, avgStaff int) {
	if len(history) == 0 {
		return 100, 30
	}
	recent := history
	if len(recent) > 7 {
		recent = recent[len(recent)-7:]
	}
	admissions, staff := 0, 0
	for _, r := range recent {
		admissions += r.Admissions
		staff += r.StaffOnDuty
	}
	return admissions / len(recent), staff / len(recent)
}

// ─── Operations ───────────────────────────────────────────────────────────────

// Forecast returns the bed-demand forecast for the horizon, cached per
// horizon. Identical requests inside the TTL window return byte-identical
// results, generation timestamp included.
func (e *Engine) Forecast(ctx context.Context, horizonDays int) model.Forecast {
	if horizonDays <= 0 {
		horizonDays = predict.DefaultHorizonDays
	}

	key := cacheKey("forecast", horizonDays)
	var cached model.Forecast
	if e.cacheGet(ctx, "forecast", key, &cached) {
		return cached
	}

	forecast := e.forecaster.Forecast(ctx, horizonDays, e.loadHistory(ctx))
	e.cacheSet(ctx, "forecast", key, forecast, e.cfg.ForecastTTL)
	return forecast
}

// StaffRisk scores staffing overload risk for the given conditions, cached
// per (admissions, staff) pair.
func (e *Engine) StaffRisk(ctx context.Context, predictedAdmissions, currentStaff int) model.StaffRiskScore {
	key := cacheKey("staff_risk", predictedAdmissions, currentStaff)
	var cached model.StaffRiskScore
	if e.cacheGet(ctx, "staff_risk", key, &cached) {
		return cached
	}

	score := predict.StaffRisk(predictedAdmissions, currentStaff, e.loadOverloads(ctx), e.now())
	e.cacheSet(ctx, "staff_risk", key, score, e.cfg.StaffRiskTTL)
	return score
}

// Recommend returns exactly three ranked recommendations for the given
// stress levels, enriched with lessons from similar past crises. Enrichment
// runs after ranking and only ever touches rationale text.
func (e *Engine) Recommend(ctx context.Context, bedStress, staffRisk float64) []model.Recommendation {
	key := cacheKey("recommendations", fmt.Sprintf("%.2f", bedStress), fmt.Sprintf("%.2f", staffRisk))
	var cached []model.Recommendation
	if e.cacheGet(ctx, "recommendations", key, &cached) {
		return cached
	}

	history := e.loadHistory(ctx)
	recs := e.recommender.Recommend(ctx, bedStress, staffRisk, history)

	avgAdmissions, avgStaff := recentAverages(history)
	lessons := e.retriever.SimilarCrises(ctx, model.HospitalContext{
		CurrentBedStress:    bedStress,
		CurrentStaffRisk:    staffRisk,
		RecentTrend:         predict.OccupancyTrend(history),
		PredictedAdmissions: avgAdmissions,
		CurrentStaff:        avgStaff,
	}, rag.DefaultTopK)
	recs = rag.Enhance(recs, lessons)

	e.cacheSet(ctx, "recommendations", key, recs, e.cfg.RecommendationTTL)
	return recs
}

// SimulateScenario recomputes the forecast and staff risk under hypothetical
// stressors. Parameter validation is the only caller-visible error; results
// are never cached, a what-if is computed fresh each time.
func (e *Engine) SimulateScenario(ctx context.Context, params predict.ScenarioParams) (model.ScenarioResult, error) {
	if err := params.Validate(); err != nil {
		return model.ScenarioResult{}, err
	}

	baseline := e.Forecast(ctx, predict.DefaultHorizonDays)

	history := e.loadHistory(ctx)
	overloads := e.loadOverloads(ctx)
	avgAdmissions, avgStaff := recentAverages(history)
	baselineRisk := predict.StaffRisk(avgAdmissions, avgStaff, overloads, e.now())

	return predict.Simulate(params, baseline, baselineRisk,
		avgAdmissions, avgStaff, overloads, e.cfg.TotalBedCapacity, e.now())
}

// StoreCrisis persists a new crisis lesson for future retrieval.
func (e *Engine) StoreCrisis(ctx context.Context, lesson model.CrisisLesson) error {
	if err := e.crises.InsertCrisis(ctx, lesson); err != nil {
		return fmt.Errorf("engine: store crisis: %w", err)
	}
	return nil
}

// Crises lists stored crisis lessons, newest first.
func (e *Engine) Crises(ctx context.Context, limit int) ([]model.CrisisLesson, error) {
	lessons, err := e.crises.ListCrises(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("engine: list crises: %w", err)
	}
	return lessons, nil
}
