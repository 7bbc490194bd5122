package engine

import (
	"context"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
	"github.com/wardsignal/hospital-stress-backend/internal/predict"
)

// EvaluateAlerts checks the current forecast and staff risk against the
// configured thresholds and returns one AlertData per crossed signal,
// complete with the predictions and recommendations that explain it.
// Evaluation only — delivery (email, chat, paging) belongs to a collaborator.
func (e *Engine) EvaluateAlerts(ctx context.Context) []model.AlertData {
	forecast := e.Forecast(ctx, predict.DefaultHorizonDays)
	if len(forecast.Predictions) == 0 {
		return []model.AlertData{}
	}

	history := e.loadHistory(ctx)
	avgAdmissions, avgStaff := recentAverages(history)
	risk := e.StaffRisk(ctx, avgAdmissions, avgStaff)

	bedStress := forecast.Predictions[0].BedStress
	now := e.now()

	alerts := []model.AlertData{}
	if bedStress > e.cfg.BedStressAlertThreshold {
		alerts = append(alerts, model.AlertData{
			AlertType:       "bed_stress",
			RiskScore:       bedStress,
			Threshold:       e.cfg.BedStressAlertThreshold,
			Predictions:     forecast.Predictions,
			Recommendations: e.Recommend(ctx, bedStress, risk.RiskScore),
			GeneratedAt:     now,
		})
	}
	if risk.RiskScore > e.cfg.StaffRiskAlertThreshold {
		alerts = append(alerts, model.AlertData{
			AlertType:       "staff_risk",
			RiskScore:       risk.RiskScore,
			Threshold:       e.cfg.StaffRiskAlertThreshold,
			Predictions:     forecast.Predictions,
			Recommendations: e.Recommend(ctx, bedStress, risk.RiskScore),
			GeneratedAt:     now,
		})
	}
	return alerts
}
