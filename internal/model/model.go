// Package model defines the value objects shared across the prediction
// engine. Everything here is plain data produced and consumed per request —
// no type owns long-lived mutable state. Field types are intentionally
// stdlib-only so the package can be imported from anywhere (engine, store,
// api) without dependency cycles.
package model

import "time"

// Thresholds shared by the forecast and staff-risk paths. These are contract
// values, not tuning knobs: is_high_risk and is_critical are defined in terms
// of them everywhere in the system.
const (
	// HighRiskBedStress is the bed-stress percentage above which a day is
	// flagged high risk.
	HighRiskBedStress = 85.0

	// CriticalStaffRisk is the staff-risk score above which the situation is
	// flagged critical.
	CriticalStaffRisk = 75.0
)

// Missing is the sentinel used by upstream ingestion for absent numeric
// fields. Any negative value is treated as missing during repair.
const Missing = -1

// CapacityRecord is one calendar day of hospital capacity and staffing data.
// Records are immutable once stored; a day may be superseded by re-upload
// upstream, but the engine only ever sees an ordered snapshot. Numeric fields
// may carry the Missing sentinel (or any negative value) until repaired.
type CapacityRecord struct {
	Date         time.Time `json:"date"`
	Admissions   int       `json:"admissions"`
	BedsOccupied int       `json:"beds_occupied"`
	StaffOnDuty  int       `json:"staff_on_duty"`
	OverloadFlag bool      `json:"overload_flag"`
}

// DailyPrediction is a single day of the bed-demand forecast.
// Invariant: IsHighRisk == (BedStress > HighRiskBedStress).
type DailyPrediction struct {
	Date          time.Time `json:"date"`
	PredictedBeds int       `json:"predicted_beds"`
	BedStress     float64   `json:"bed_stress"` // 0-100, % of total capacity
	Confidence    float64   `json:"confidence"` // 0-100
	IsHighRisk    bool      `json:"is_high_risk"`
}

// Forecast is a fixed-horizon bed-demand forecast: one DailyPrediction per
// consecutive future calendar day starting tomorrow.
type Forecast struct {
	Predictions       []DailyPrediction `json:"predictions"`
	OverallConfidence float64           `json:"overall_confidence"` // 0-100
	GeneratedAt       time.Time         `json:"generated_at"`
}

// HighRiskDays counts predictions flagged high risk.
func (f Forecast) HighRiskDays() int {
	n := 0
	for _, p := range f.Predictions {
		if p.IsHighRisk {
			n++
		}
	}
	return n
}

// AverageStress returns the mean bed stress across the horizon, or 0 for an
// empty forecast.
func (f Forecast) AverageStress() float64 {
	if len(f.Predictions) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range f.Predictions {
		total += p.BedStress
	}
	return total / float64(len(f.Predictions))
}

// StaffRiskScore is the staffing overload assessment for a single query.
// Invariant: IsCritical == (RiskScore > CriticalStaffRisk).
// ContributingFactors is never empty — when nothing specific applies, a single
// generic statement is emitted.
type StaffRiskScore struct {
	RiskScore           float64   `json:"risk_score"` // 0-100
	Confidence          float64   `json:"confidence"` // 0-100
	IsCritical          bool      `json:"is_critical"`
	ContributingFactors []string  `json:"contributing_factors"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Recommendation is one ranked action. A recommendation set is always exactly
// three items with priorities {1,2,3} each used once, priority 1 having the
// best impact-to-cost ratio.
type Recommendation struct {
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Rationale          string  `json:"rationale"`
	CostEstimate       float64 `json:"cost_estimate"` // dollars, >= 0
	ImpactScore        float64 `json:"impact_score"`  // 0-100
	Priority           int     `json:"priority"`      // 1, 2, or 3
	ImplementationTime string  `json:"implementation_time"`
}

// ScenarioResult compares a baseline forecast/risk pair against the same
// horizon recomputed under hypothetical stress parameters.
type ScenarioResult struct {
	BaselineForecast  Forecast       `json:"baseline_forecast"`
	ScenarioForecast  Forecast       `json:"scenario_forecast"`
	BaselineStaffRisk StaffRiskScore `json:"baseline_staff_risk"`
	ScenarioStaffRisk StaffRiskScore `json:"scenario_staff_risk"`
	ImpactSummary     string         `json:"impact_summary"`
}

// CrisisLesson is a stored historical incident with the actions taken and
// their outcome, used for retrieval-based recommendation enrichment.
// SimilarityScore is 0 until retrieval assigns it (clamped to [0,1]).
type CrisisLesson struct {
	CrisisID          string    `json:"crisis_id"`
	Date              time.Time `json:"date"`
	CrisisDescription string    `json:"crisis_description"`
	BedStress         float64   `json:"bed_stress"` // 0-100
	StaffRisk         float64   `json:"staff_risk"` // 0-100
	ActionsTaken      []string  `json:"actions_taken"`
	Outcome           string    `json:"outcome"`
	LessonsLearned    string    `json:"lessons_learned"`
	SimilarityScore   float64   `json:"similarity_score,omitempty"`
}

// HospitalContext is an ephemeral snapshot of the current situation, used
// only as the retrieval query for similar past crises. Never persisted.
type HospitalContext struct {
	CurrentBedStress    float64 `json:"current_bed_stress"`
	CurrentStaffRisk    float64 `json:"current_staff_risk"`
	RecentTrend         string  `json:"recent_trend"`
	PredictedAdmissions int     `json:"predicted_admissions"`
	CurrentStaff        int     `json:"current_staff"`
}

// AlertData is an evaluated (not delivered) alert: the stress signal that
// crossed its threshold together with the predictions and recommendations
// that explain it. Delivery is a collaborator concern.
type AlertData struct {
	AlertType       string            `json:"alert_type"` // "bed_stress" or "staff_risk"
	RiskScore       float64           `json:"risk_score"`
	Threshold       float64           `json:"threshold"`
	Predictions     []DailyPrediction `json:"predictions"`
	Recommendations []Recommendation  `json:"recommendations"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// DashboardData is the aggregate snapshot served to the dashboard view.
type DashboardData struct {
	BedStressCurrent     float64           `json:"bed_stress_current"`
	StaffRiskCurrent     float64           `json:"staff_risk_current"`
	ActiveAlertsCount    int               `json:"active_alerts_count"`
	RecommendationsCount int               `json:"recommendations_count"`
	SevenDayForecast     Forecast          `json:"seven_day_forecast"`
	SevenDayStaffRisk    []StaffRiskScore  `json:"seven_day_staff_risk"`
	TrendIndicators      map[string]string `json:"trend_indicators"` // "up" | "down" | "stable"
}

// Clamp constrains v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
