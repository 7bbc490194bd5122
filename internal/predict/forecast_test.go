package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/ai"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// stubGenerator returns a canned response or error and records the last
// request for prompt assertions.
type stubGenerator struct {
	response string
	err      error
	lastReq  ai.Request
}

func (s *stubGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	s.lastReq = req
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeHistory builds n clean consecutive days ending yesterday relative to
// testNow.
func makeHistory(n, beds, admissions, staff int) []model.CapacityRecord {
	records := make([]model.CapacityRecord, n)
	for i := 0; i < n; i++ {
		records[i] = model.CapacityRecord{
			Date:         testNow.AddDate(0, 0, -(n - i)),
			Admissions:   admissions,
			BedsOccupied: beds,
			StaffOnDuty:  staff,
		}
	}
	return records
}

func sevenDayResponse(beds int) string {
	days := make([]string, 7)
	for i := range days {
		days[i] = fmt.Sprintf(`{"day": %d, "predicted_beds": %d, "confidence": 85, "reasoning": "trend"}`, i+1, beds)
	}
	return "[" + strings.Join(days, ",") + "]"
}

func newTestForecaster(gen ai.Generator, capacity int) *ForecastGenerator {
	g := NewForecastGenerator(gen, capacity, discardLogger())
	g.now = func() time.Time { return testNow }
	return g
}

// ─── Forecast — shape ─────────────────────────────────────────────────────────

func TestForecast_SevenConsecutiveDaysStartingTomorrow(t *testing.T) {
	gen := &stubGenerator{response: sevenDayResponse(250)}
	g := newTestForecaster(gen, 500)

	f := g.Forecast(context.Background(), DefaultHorizonDays, makeHistory(30, 240, 100, 50))

	if len(f.Predictions) != 7 {
		t.Fatalf("got %d predictions, want 7", len(f.Predictions))
	}
	base := testNow.Truncate(24 * time.Hour)
	for i, p := range f.Predictions {
		want := base.AddDate(0, 0, i+1)
		if !p.Date.Equal(want) {
			t.Errorf("prediction %d date = %v, want %v", i, p.Date, want)
		}
	}
	if gen.lastReq.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", gen.lastReq.Temperature)
	}
}

func TestForecast_NonPositiveHorizonDefaultsToSeven(t *testing.T) {
	gen := &stubGenerator{response: sevenDayResponse(250)}
	g := newTestForecaster(gen, 500)

	f := g.Forecast(context.Background(), 0, makeHistory(10, 240, 100, 50))
	if len(f.Predictions) != 7 {
		t.Errorf("got %d predictions, want 7", len(f.Predictions))
	}
}

func TestForecast_StressAndHighRiskDerivedFromBeds(t *testing.T) {
	tests := []struct {
		beds       int
		wantStress float64
		wantHigh   bool
	}{
		{250, 50, false},
		{425, 85, false}, // boundary is exclusive
		{430, 86, true},
		{600, 100, true}, // clamped
	}
	for _, tt := range tests {
		gen := &stubGenerator{response: sevenDayResponse(tt.beds)}
		g := newTestForecaster(gen, 500)

		f := g.Forecast(context.Background(), 7, makeHistory(30, 240, 100, 50))
		p := f.Predictions[0]
		if p.BedStress != tt.wantStress {
			t.Errorf("beds=%d: stress = %v, want %v", tt.beds, p.BedStress, tt.wantStress)
		}
		if p.IsHighRisk != tt.wantHigh {
			t.Errorf("beds=%d: high risk = %v, want %v", tt.beds, p.IsHighRisk, tt.wantHigh)
		}
	}
}

func TestForecast_OverallConfidenceBlend(t *testing.T) {
	gen := &stubGenerator{response: sevenDayResponse(250)}
	g := newTestForecaster(gen, 500)

	// 200 clean days: completeness 100, quality 100, fixed accuracy 80.
	f := g.Forecast(context.Background(), 7, makeHistory(200, 240, 100, 50))

	want := 0.4*100 + 0.3*100 + 0.3*80
	if f.OverallConfidence != want {
		t.Errorf("overall confidence = %v, want %v", f.OverallConfidence, want)
	}
}

// ─── Forecast — fallback paths ────────────────────────────────────────────────

func TestForecast_BackendErrorFallsBackToTrailingAverage(t *testing.T) {
	gen := &stubGenerator{err: errors.New("backend down")}
	g := newTestForecaster(gen, 500)

	f := g.Forecast(context.Background(), 7, makeHistory(30, 300, 100, 50))

	for i, p := range f.Predictions {
		if p.Confidence != fallbackConfidence {
			t.Errorf("prediction %d confidence = %v, want %v", i, p.Confidence, fallbackConfidence)
		}
		day := p.Date.Weekday()
		want := int(300 * weekdayMultiplier)
		if day == time.Saturday || day == time.Sunday {
			want = int(300 * weekendMultiplier)
		}
		if p.PredictedBeds != want {
			t.Errorf("prediction %d (%v): beds = %d, want %d", i, day, p.PredictedBeds, want)
		}
	}
}

func TestForecast_MalformedResponseFallsBack(t *testing.T) {
	for _, response := range []string{
		"not json at all",
		`[{"day": 1, "predicted_beds": 250, "confidence": 85}]`, // too few days
	} {
		gen := &stubGenerator{response: response}
		g := newTestForecaster(gen, 500)

		f := g.Forecast(context.Background(), 7, makeHistory(30, 300, 100, 50))
		if len(f.Predictions) != 7 {
			t.Fatalf("response %q: got %d predictions, want 7", response, len(f.Predictions))
		}
		if f.Predictions[0].Confidence != fallbackConfidence {
			t.Errorf("response %q: confidence = %v, want fallback %v",
				response, f.Predictions[0].Confidence, fallbackConfidence)
		}
	}
}

func TestForecast_FencedResponseIsAccepted(t *testing.T) {
	gen := &stubGenerator{response: "```json\n" + sevenDayResponse(250) + "\n```"}
	g := newTestForecaster(gen, 500)

	f := g.Forecast(context.Background(), 7, makeHistory(30, 240, 100, 50))
	if f.Predictions[0].PredictedBeds != 250 {
		t.Errorf("beds = %d, want 250 from fenced response", f.Predictions[0].PredictedBeds)
	}
}

func TestForecast_EmptyHistoryUsesDefaults(t *testing.T) {
	g := newTestForecaster(nil, 500)

	f := g.Forecast(context.Background(), 7, nil)

	if len(f.Predictions) != 7 {
		t.Fatalf("got %d predictions, want 7", len(f.Predictions))
	}
	for _, p := range f.Predictions {
		if p.PredictedBeds != fallbackDefaultBeds {
			t.Errorf("beds = %d, want default %d", p.PredictedBeds, fallbackDefaultBeds)
		}
		if p.Confidence != fallbackEmptyConfidence {
			t.Errorf("confidence = %v, want %v", p.Confidence, fallbackEmptyConfidence)
		}
	}
	// Empty history: quality 0, completeness 0, accuracy term only.
	if f.OverallConfidence != 0.3*historicalAccuracy {
		t.Errorf("overall confidence = %v, want %v", f.OverallConfidence, 0.3*historicalAccuracy)
	}
}

func TestForecast_SentinelHistoryIsRepairedBeforePrompting(t *testing.T) {
	history := makeHistory(10, 300, 100, 50)
	history[5].BedsOccupied = model.Missing

	gen := &stubGenerator{response: sevenDayResponse(250)}
	g := newTestForecaster(gen, 500)
	g.Forecast(context.Background(), 7, history)

	if strings.Contains(gen.lastReq.Prompt, " -1 |") {
		t.Error("prompt contains unrepaired sentinel value")
	}
}

func TestForecast_ExtraDaysTruncated(t *testing.T) {
	days := make([]string, 10)
	for i := range days {
		days[i] = fmt.Sprintf(`{"day": %d, "predicted_beds": 250, "confidence": 85, "reasoning": "x"}`, i+1)
	}
	gen := &stubGenerator{response: "[" + strings.Join(days, ",") + "]"}
	g := newTestForecaster(gen, 500)

	f := g.Forecast(context.Background(), 7, makeHistory(30, 240, 100, 50))
	if len(f.Predictions) != 7 {
		t.Errorf("got %d predictions, want 7", len(f.Predictions))
	}
}
