package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/api"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/predict"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubEngine satisfies api.Engine with canned results. Fields may be set
// per-test to control behaviour.
type stubEngine struct {
	forecast        model.Forecast
	staffRisk       model.StaffRiskScore
	recommendations []model.Recommendation
	scenario        model.ScenarioResult
	dashboard       model.DashboardData
	alerts          []model.AlertData
	crises          []model.CrisisLesson

	stored        []model.CrisisLesson
	invalidations int
	crisesErr     error
	invalidateErr error

	lastHorizon    int
	lastAdmissions int
	lastStaff      int
}

func (e *stubEngine) Forecast(_ context.Context, horizonDays int) model.Forecast {
	e.lastHorizon = horizonDays
	return e.forecast
}

func (e *stubEngine) StaffRisk(_ context.Context, admissions, staff int) model.StaffRiskScore {
	e.lastAdmissions, e.lastStaff = admissions, staff
	return e.staffRisk
}

func (e *stubEngine) Recommend(context.Context, float64, float64) []model.Recommendation {
	return e.recommendations
}

func (e *stubEngine) SimulateScenario(_ context.Context, params predict.ScenarioParams) (model.ScenarioResult, error) {
	if err := params.Validate(); err != nil {
		return model.ScenarioResult{}, err
	}
	return e.scenario, nil
}

func (e *stubEngine) Dashboard(context.Context) model.DashboardData {
	return e.dashboard
}

func (e *stubEngine) EvaluateAlerts(context.Context) []model.AlertData {
	return e.alerts
}

func (e *stubEngine) InvalidateCache(context.Context) error {
	if e.invalidateErr != nil {
		return e.invalidateErr
	}
	e.invalidations++
	return nil
}

func (e *stubEngine) Crises(context.Context, int) ([]model.CrisisLesson, error) {
	return e.crises, e.crisesErr
}

func (e *stubEngine) StoreCrisis(_ context.Context, lesson model.CrisisLesson) error {
	e.stored = append(e.stored, lesson)
	return nil
}

func newTestServer(engine *stubEngine) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewServer(engine, api.Config{Env: "development"}, logger)
}

func sampleForecast(days int) model.Forecast {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	predictions := make([]model.DailyPrediction, days)
	for i := range predictions {
		predictions[i] = model.DailyPrediction{
			Date:          now.AddDate(0, 0, i+1),
			PredictedBeds: 250,
			BedStress:     50,
			Confidence:    85,
		}
	}
	return model.Forecast{Predictions: predictions, OverallConfidence: 90, GeneratedAt: now}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// ─── FORECAST ─────────────────────────────────────────────────────────────────

func TestHandleForecast_DefaultHorizon(t *testing.T) {
	engine := &stubEngine{forecast: sampleForecast(7)}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodGet, "/api/predictions/forecast", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if engine.lastHorizon != 7 {
		t.Errorf("horizon = %d, want 7", engine.lastHorizon)
	}

	var got model.Forecast
	decodeJSON(t, rr, &got)
	if len(got.Predictions) != 7 {
		t.Errorf("got %d predictions, want 7", len(got.Predictions))
	}
}

func TestHandleForecast_DaysParam(t *testing.T) {
	engine := &stubEngine{forecast: sampleForecast(3)}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodGet, "/api/predictions/forecast?days=3", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if engine.lastHorizon != 3 {
		t.Errorf("horizon = %d, want 3", engine.lastHorizon)
	}
}

func TestHandleForecast_InvalidDaysRejected(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	for _, q := range []string{"days=zero", "days=-1", "days=0", "days=31"} {
		rr := doRequest(t, srv, http.MethodGet, "/api/predictions/forecast?"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rr.Code)
		}
	}
}

// ─── STAFF RISK ───────────────────────────────────────────────────────────────

func TestHandleStaffRisk(t *testing.T) {
	engine := &stubEngine{staffRisk: model.StaffRiskScore{
		RiskScore:           68,
		Confidence:          75,
		ContributingFactors: []string{"Below optimal staffing levels"},
	}}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodGet, "/api/predictions/staff-risk?admissions=300&staff=20", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if engine.lastAdmissions != 300 || engine.lastStaff != 20 {
		t.Errorf("engine called with (%d, %d), want (300, 20)", engine.lastAdmissions, engine.lastStaff)
	}

	var got model.StaffRiskScore
	decodeJSON(t, rr, &got)
	if got.RiskScore != 68 {
		t.Errorf("risk = %v, want 68", got.RiskScore)
	}
}

func TestHandleStaffRisk_MissingParamsRejected(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	for _, q := range []string{"", "admissions=300", "staff=20", "admissions=-1&staff=20", "admissions=abc&staff=20"} {
		rr := doRequest(t, srv, http.MethodGet, "/api/predictions/staff-risk?"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d, want 400", q, rr.Code)
		}
	}
}

// ─── RECOMMENDATIONS ──────────────────────────────────────────────────────────

func TestHandleRecommendations(t *testing.T) {
	engine := &stubEngine{recommendations: []model.Recommendation{
		{Title: "A", Priority: 1}, {Title: "B", Priority: 2}, {Title: "C", Priority: 3},
	}}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodPost, "/api/predictions/recommendations",
		map[string]float64{"bed_stress": 92.5, "staff_risk": 85})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var got []model.Recommendation
	decodeJSON(t, rr, &got)
	if len(got) != 3 {
		t.Errorf("got %d recommendations, want 3", len(got))
	}
}

func TestHandleRecommendations_OutOfRangeRejected(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	rr := doRequest(t, srv, http.MethodPost, "/api/predictions/recommendations",
		map[string]float64{"bed_stress": 120, "staff_risk": 50})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

// ─── SCENARIO ─────────────────────────────────────────────────────────────────

func TestHandleScenario(t *testing.T) {
	engine := &stubEngine{scenario: model.ScenarioResult{ImpactSummary: "summary"}}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodPost, "/api/predictions/scenario",
		map[string]float64{"sick_rate": 0.2, "admission_surge": 0.5})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleScenario_OutOfRangeIs400(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	rr := doRequest(t, srv, http.MethodPost, "/api/predictions/scenario",
		map[string]float64{"sick_rate": 0.6, "admission_surge": 0})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rr.Code, rr.Body.String())
	}

	var body map[string]string
	decodeJSON(t, rr, &body)
	if body["error"] == "" {
		t.Error("error message missing from response")
	}
}

// ─── DASHBOARD & ALERTS ───────────────────────────────────────────────────────

func TestHandleDashboard(t *testing.T) {
	engine := &stubEngine{dashboard: model.DashboardData{
		BedStressCurrent: 50,
		SevenDayForecast: sampleForecast(7),
		TrendIndicators:  map[string]string{"bed_stress": "stable", "staff_risk": "up"},
	}}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodGet, "/api/dashboard", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var got model.DashboardData
	decodeJSON(t, rr, &got)
	if got.TrendIndicators["staff_risk"] != "up" {
		t.Errorf("trend = %q, want up", got.TrendIndicators["staff_risk"])
	}
}

func TestHandleAlerts_EmptyIsArray(t *testing.T) {
	srv := newTestServer(&stubEngine{alerts: []model.AlertData{}})

	rr := doRequest(t, srv, http.MethodGet, "/api/alerts", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

// ─── CRISES ───────────────────────────────────────────────────────────────────

func TestHandleListCrises(t *testing.T) {
	engine := &stubEngine{crises: []model.CrisisLesson{{CrisisID: "c1", CrisisDescription: "surge"}}}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodGet, "/api/crises/", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var got []model.CrisisLesson
	decodeJSON(t, rr, &got)
	if len(got) != 1 || got[0].CrisisID != "c1" {
		t.Errorf("unexpected crises: %+v", got)
	}
}

func TestHandleListCrises_StoreFailureIs500(t *testing.T) {
	srv := newTestServer(&stubEngine{crisesErr: errors.New("db down")})

	rr := doRequest(t, srv, http.MethodGet, "/api/crises/", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestHandleStoreCrisis(t *testing.T) {
	engine := &stubEngine{}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodPost, "/api/crises/", map[string]any{
		"crisis_description": "ICU overflow",
		"bed_stress":         95,
		"staff_risk":         88,
		"actions_taken":      []string{"opened overflow ward"},
		"outcome":            "stabilized",
		"lessons_learned":    "act earlier",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if len(engine.stored) != 1 {
		t.Fatalf("stored %d lessons, want 1", len(engine.stored))
	}
	if engine.stored[0].CrisisDescription != "ICU overflow" {
		t.Errorf("stored description = %q", engine.stored[0].CrisisDescription)
	}
	if engine.stored[0].Date.IsZero() {
		t.Error("missing date not defaulted")
	}
}

func TestHandleStoreCrisis_ValidationRejected(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing description", map[string]any{"bed_stress": 50, "staff_risk": 50}},
		{"stress out of range", map[string]any{"crisis_description": "x", "bed_stress": 150, "staff_risk": 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/api/crises/", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

// ─── CACHE ────────────────────────────────────────────────────────────────────

func TestHandleInvalidateCache(t *testing.T) {
	engine := &stubEngine{}
	srv := newTestServer(engine)

	rr := doRequest(t, srv, http.MethodPost, "/api/cache/invalidate", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if engine.invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", engine.invalidations)
	}
}

func TestHandleInvalidateCache_FailureIs500(t *testing.T) {
	srv := newTestServer(&stubEngine{invalidateErr: errors.New("redis down")})

	rr := doRequest(t, srv, http.MethodPost, "/api/cache/invalidate", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

// ─── HEALTH ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubEngine{})

	rr := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
