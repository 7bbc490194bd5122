// Package predict implements the prediction core: bed-demand forecasting,
// staff-risk scoring, recommendation generation, and scenario arithmetic.
// Everything here is request-scoped — collaborator handles come in through
// constructors, records come in as immutable snapshots, and no function
// keeps state between calls. Caching and store access live in the engine
// package, not here.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/ai"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/quality"
)

// DefaultHorizonDays is the standard forecast horizon.
const DefaultHorizonDays = 7

// historicalAccuracy is the fixed accuracy term blended into overall
// confidence. There is no accuracy-tracking feedback loop yet, so this stays
// a constant.
const historicalAccuracy = 80.0

// Fallback confidence levels for the deterministic forecast path.
const (
	fallbackConfidence      = 60.0
	fallbackEmptyConfidence = 30.0
	fallbackDefaultBeds     = 200
	weekdayMultiplier       = 1.1
	weekendMultiplier       = 0.9
	fallbackTrailingDays    = 14
)

// ForecastGenerator produces fixed-horizon bed-demand forecasts. The AI
// backend supplies the primary estimate; a trailing-average fallback covers
// backend failure, malformed output, and empty history.
type ForecastGenerator struct {
	gen           ai.Generator
	totalCapacity int
	logger        *slog.Logger
	now           func() time.Time
}

// NewForecastGenerator constructs a ForecastGenerator. gen may be nil, in
// which case every forecast takes the deterministic fallback path.
func NewForecastGenerator(gen ai.Generator, totalCapacity int, logger *slog.Logger) *ForecastGenerator {
	return &ForecastGenerator{
		gen:           gen,
		totalCapacity: totalCapacity,
		logger:        logger,
		now:           time.Now,
	}
}

// dayEstimate is the per-day shape the model is prompted to return, and also
// what the fallback produces.
type dayEstimate struct {
	Day           int     `json:"day"`
	PredictedBeds int     `json:"predicted_beds"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// Forecast returns exactly horizonDays predictions for the next consecutive
// calendar days starting tomorrow, regardless of history size (including
// empty history). Backend failure is recovered internally — the returned
// forecast is always usable, with confidence reflecting how it was produced.
func (g *ForecastGenerator) Forecast(ctx context.Context, horizonDays int, history []model.CapacityRecord) model.Forecast {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	// Quality is assessed on the raw records; repair erases exactly the
	// signals the quality score measures.
	qualityScore := quality.Quality(history, g.totalCapacity)
	completeness := quality.Completeness(history)
	repaired := quality.Repair(history)

	estimates, err := g.aiForecast(ctx, repaired, horizonDays)
	if err != nil {
		g.logger.Warn("forecast: backend degraded, using trailing-average fallback",
			"error", err, "history_days", len(repaired))
		estimates = g.fallbackForecast(repaired, horizonDays)
	}

	now := g.now()
	base := now.Truncate(24 * time.Hour)
	predictions := make([]model.DailyPrediction, horizonDays)
	for i := 0; i < horizonDays; i++ {
		est := estimates[i]
		beds := est.PredictedBeds
		if beds < 0 {
			beds = 0
		}
		stress := g.bedStress(beds)
		predictions[i] = model.DailyPrediction{
			Date:          base.AddDate(0, 0, i+1),
			PredictedBeds: beds,
			BedStress:     stress,
			Confidence:    model.Clamp(est.Confidence, 0, 100),
			IsHighRisk:    stress > model.HighRiskBedStress,
		}
	}

	overall := model.Clamp(
		0.4*qualityScore+0.3*completeness+0.3*historicalAccuracy, 0, 100)

	return model.Forecast{
		Predictions:       predictions,
		OverallConfidence: overall,
		GeneratedAt:       now,
	}
}

func (g *ForecastGenerator) bedStress(predictedBeds int) float64 {
	return BedStress(predictedBeds, g.totalCapacity)
}

// aiForecast asks the backend for a day-by-day estimate array. Any failure —
// nil generator, call error, unparseable output, too few days — is returned
// as an error so the caller can fall back.
func (g *ForecastGenerator) aiForecast(ctx context.Context, repaired []model.CapacityRecord, horizonDays int) ([]dayEstimate, error) {
	if g.gen == nil {
		return nil, fmt.Errorf("forecast: no generator configured")
	}

	prompt := g.buildForecastPrompt(repaired, horizonDays)

	raw, err := g.gen.Generate(ctx, ai.Request{
		Prompt:      prompt,
		Temperature: 0.2, // determinism over creativity
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, fmt.Errorf("forecast: generate: %w", err)
	}

	var estimates []dayEstimate
	if err := json.Unmarshal([]byte(ai.StripFences(raw)), &estimates); err != nil {
		return nil, fmt.Errorf("forecast: parse response: %w (raw: %.200s)", err, raw)
	}
	if len(estimates) < horizonDays {
		return nil, fmt.Errorf("forecast: backend returned %d days, want %d", len(estimates), horizonDays)
	}

	return estimates[:horizonDays], nil
}

// buildForecastPrompt summarises the most recent ~30 days (statistics plus
// the last 10 days in detail) as context for the model.
func (g *ForecastGenerator) buildForecastPrompt(repaired []model.CapacityRecord, horizonDays int) string {
	var sb strings.Builder

	sb.WriteString("You are a hospital capacity forecasting expert. Given the following historical data:\n\n")
	sb.WriteString(summarizeHistory(repaired))
	fmt.Fprintf(&sb, `

Generate a %d-day forecast of bed demand. For each day, provide:
1. Predicted number of beds occupied
2. Confidence score (0-100)
3. Brief reasoning

Consider seasonal patterns, day-of-week effects, and recent trends.
Respond ONLY with valid JSON matching this exact structure, no markdown fences, no preamble:
[
  {"day": 1, "predicted_beds": 250, "confidence": 85, "reasoning": "Based on recent trends..."},
  ...
]
`, horizonDays)

	return sb.String()
}

// summarizeHistory renders the last 10 days in detail plus 30-day statistics.
func summarizeHistory(records []model.CapacityRecord) string {
	if len(records) == 0 {
		return "No historical data available"
	}

	recent := records
	if len(recent) > 30 {
		recent = recent[len(recent)-30:]
	}

	var sb strings.Builder
	sb.WriteString("Recent hospital data (last 30 days):\n")
	sb.WriteString("Date | Admissions | Beds Occupied | Staff | Overload\n")
	sb.WriteString(strings.Repeat("-", 55) + "\n")

	detail := recent
	if len(detail) > 10 {
		detail = detail[len(detail)-10:]
	}
	for _, r := range detail {
		overload := "NO"
		if r.OverloadFlag {
			overload = "YES"
		}
		fmt.Fprintf(&sb, "%s | %10d | %12d | %5d | %s\n",
			r.Date.Format("2006-01-02"), r.Admissions, r.BedsOccupied, r.StaffOnDuty, overload)
	}

	avgBeds, avgAdmissions := 0.0, 0.0
	overloadCount := 0
	for _, r := range recent {
		avgBeds += float64(r.BedsOccupied)
		avgAdmissions += float64(r.Admissions)
		if r.OverloadFlag {
			overloadCount++
		}
	}
	avgBeds /= float64(len(recent))
	avgAdmissions /= float64(len(recent))

	fmt.Fprintf(&sb, "\nAverage beds occupied: %.1f\n", avgBeds)
	fmt.Fprintf(&sb, "Average daily admissions: %.1f\n", avgAdmissions)
	fmt.Fprintf(&sb, "Overload events in last 30 days: %d\n", overloadCount)

	return sb.String()
}

// fallbackForecast is the deterministic path: a 14-day trailing average of
// occupancy with a weekday multiplier, at fixed confidence. With no history
// at all it uses a default bed count at low confidence.
func (g *ForecastGenerator) fallbackForecast(repaired []model.CapacityRecord, horizonDays int) []dayEstimate {
	estimates := make([]dayEstimate, horizonDays)

	if len(repaired) == 0 {
		for i := range estimates {
			estimates[i] = dayEstimate{
				Day:           i + 1,
				PredictedBeds: fallbackDefaultBeds,
				Confidence:    fallbackEmptyConfidence,
				Reasoning:     "No historical data available, using default values",
			}
		}
		return estimates
	}

	recent := repaired
	if len(recent) > fallbackTrailingDays {
		recent = recent[len(recent)-fallbackTrailingDays:]
	}
	avgBeds := 0.0
	for _, r := range recent {
		avgBeds += float64(r.BedsOccupied)
	}
	avgBeds /= float64(len(recent))

	base := g.now().Truncate(24 * time.Hour)
	for i := range estimates {
		day := base.AddDate(0, 0, i+1).Weekday()
		multiplier := weekdayMultiplier
		if day == time.Saturday || day == time.Sunday {
			multiplier = weekendMultiplier
		}
		estimates[i] = dayEstimate{
			Day:           i + 1,
			PredictedBeds: int(avgBeds * multiplier),
			Confidence:    fallbackConfidence,
			Reasoning:     fmt.Sprintf("Based on %d-day average with day-of-week adjustment", len(recent)),
		}
	}

	return estimates
}
