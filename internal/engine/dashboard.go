package engine

import (
	"context"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/predict"
)

// admissionsPerBed is the rough occupancy-to-admissions conversion used to
// score per-day staff risk from a bed forecast.
const admissionsPerBed = 0.3

// defaultDashboardStaff stands in for average staffing when there is no
// history to average.
const defaultDashboardStaff = 30

// Dashboard assembles the aggregate snapshot: day-one stress and risk, the
// full 7-day forecast with a matching per-day staff-risk series, alert and
// recommendation counts, and first-half vs second-half trend indicators. The
// whole aggregate is cached very briefly under the prediction namespace so
// invalidation after ingestion covers it too.
func (e *Engine) Dashboard(ctx context.Context) model.DashboardData {
	key := cacheKey("dashboard")
	var cached model.DashboardData
	if e.cacheGet(ctx, "dashboard", key, &cached) {
		return cached
	}

	forecast := e.Forecast(ctx, predict.DefaultHorizonDays)
	history := e.loadHistory(ctx)
	overloads := e.loadOverloads(ctx)

	avgStaff := defaultDashboardStaff
	if len(history) > 0 {
		_, avgStaff = recentAverages(history)
	}

	now := e.now()
	staffRisks := make([]model.StaffRiskScore, len(forecast.Predictions))
	for i, p := range forecast.Predictions {
		estimatedAdmissions := int(float64(p.PredictedBeds) * admissionsPerBed)
		staffRisks[i] = predict.StaffRisk(estimatedAdmissions, avgStaff, overloads, now)
	}

	bedStressCurrent, staffRiskCurrent := 0.0, 0.0
	if len(forecast.Predictions) > 0 {
		bedStressCurrent = forecast.Predictions[0].BedStress
	}
	if len(staffRisks) > 0 {
		staffRiskCurrent = staffRisks[0].RiskScore
	}

	alerts := forecast.HighRiskDays()
	for _, s := range staffRisks {
		if s.IsCritical {
			alerts++
		}
	}

	recommendationsCount := 0
	if bedStressCurrent > e.cfg.BedStressAlertThreshold || staffRiskCurrent > e.cfg.StaffRiskAlertThreshold {
		recommendationsCount = len(e.Recommend(ctx, bedStressCurrent, staffRiskCurrent))
	}

	data := model.DashboardData{
		BedStressCurrent:     bedStressCurrent,
		StaffRiskCurrent:     staffRiskCurrent,
		ActiveAlertsCount:    alerts,
		RecommendationsCount: recommendationsCount,
		SevenDayForecast:     forecast,
		SevenDayStaffRisk:    staffRisks,
		TrendIndicators:      trendIndicators(forecast, staffRisks),
	}

	e.cacheSet(ctx, "dashboard", key, data, e.cfg.DashboardTTL)
	return data
}

// trendIndicators compares the first three days of each series against the
// last three, with a 5% dead band. Series shorter than six days read as
// stable.
func trendIndicators(forecast model.Forecast, staffRisks []model.StaffRiskScore) map[string]string {
	trends := map[string]string{
		"bed_stress": "stable",
		"staff_risk": "stable",
	}

	if len(forecast.Predictions) >= 6 {
		first, second := 0.0, 0.0
		for _, p := range forecast.Predictions[:3] {
			first += p.BedStress
		}
		for _, p := range forecast.Predictions[len(forecast.Predictions)-3:] {
			second += p.BedStress
		}
		trends["bed_stress"] = trendDirection(first/3, second/3)
	}

	if len(staffRisks) >= 6 {
		first, second := 0.0, 0.0
		for _, s := range staffRisks[:3] {
			first += s.RiskScore
		}
		for _, s := range staffRisks[len(staffRisks)-3:] {
			second += s.RiskScore
		}
		trends["staff_risk"] = trendDirection(first/3, second/3)
	}

	return trends
}

func trendDirection(first, second float64) string {
	switch {
	case second > first*1.05:
		return "up"
	case second < first*0.95:
		return "down"
	default:
		return "stable"
	}
}
