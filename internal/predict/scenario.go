package predict

import (
	"fmt"
	"strings"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// Scenario parameter bounds. Out-of-range values are rejected, never clamped:
// a clamped what-if silently answers a different question than the one asked.
const (
	MinSickRate       = 0.0
	MaxSickRate       = 0.5
	MinAdmissionSurge = -0.3
	MaxAdmissionSurge = 1.0
)

// scenarioConfidenceFactor reduces every scenario confidence: a hypothetical
// is always less certain than the baseline it derives from.
const scenarioConfidenceFactor = 0.85

// surgeBedFactor dampens the surge-to-occupancy relationship: not every
// additional admission occupies a bed for the full day.
const surgeBedFactor = 0.8

// RangeError reports a scenario parameter outside its closed interval. It is
// the only error the prediction core surfaces to callers.
type RangeError struct {
	Param    string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("predict: %s must be between %g and %g, got %g", e.Param, e.Min, e.Max, e.Value)
}

// ScenarioParams are the what-if stressors: SickRate is the fraction of staff
// unavailable, AdmissionSurge the fractional change in admissions.
type ScenarioParams struct {
	SickRate       float64 `json:"sick_rate"`
	AdmissionSurge float64 `json:"admission_surge"`
}

// Validate checks both parameters against their closed intervals.
func (p ScenarioParams) Validate() error {
	if p.SickRate < MinSickRate || p.SickRate > MaxSickRate {
		return &RangeError{Param: "sick_rate", Value: p.SickRate, Min: MinSickRate, Max: MaxSickRate}
	}
	if p.AdmissionSurge < MinAdmissionSurge || p.AdmissionSurge > MaxAdmissionSurge {
		return &RangeError{Param: "admission_surge", Value: p.AdmissionSurge, Min: MinAdmissionSurge, Max: MaxAdmissionSurge}
	}
	return nil
}

// BedStress converts a bed count to a stress percentage of total capacity,
// clamped to [0,100]. Non-positive capacity yields 0.
func BedStress(predictedBeds, totalCapacity int) float64 {
	if totalCapacity <= 0 {
		return 0
	}
	return model.Clamp(float64(predictedBeds)/float64(totalCapacity)*100, 0, 100)
}

// Simulate derives a scenario forecast and staff risk from the baseline pair
// under the given stressors, and renders the impact summary. avgAdmissions
// and avgStaff are the recent-average conditions the baseline risk was scored
// with; the scenario risk rescores them under the stressors. Validation
// failure is the only error path.
func Simulate(
	p ScenarioParams,
	baseline model.Forecast,
	baselineRisk model.StaffRiskScore,
	avgAdmissions, avgStaff int,
	overloads []model.CapacityRecord,
	totalCapacity int,
	now time.Time,
) (model.ScenarioResult, error) {
	if err := p.Validate(); err != nil {
		return model.ScenarioResult{}, err
	}

	scenarioForecast := adjustForecast(baseline, p, totalCapacity, now)

	scenarioStaff := int(float64(avgStaff) * (1 - p.SickRate))
	if scenarioStaff < 1 {
		scenarioStaff = 1
	}
	scenarioAdmissions := int(float64(avgAdmissions) * (1 + p.AdmissionSurge))

	scenarioRisk := StaffRisk(scenarioAdmissions, scenarioStaff, overloads, now)

	return model.ScenarioResult{
		BaselineForecast:  baseline,
		ScenarioForecast:  scenarioForecast,
		BaselineStaffRisk: baselineRisk,
		ScenarioStaffRisk: scenarioRisk,
		ImpactSummary:     impactSummary(p, baseline, scenarioForecast, baselineRisk, scenarioRisk),
	}, nil
}

// adjustForecast scales each day's occupancy by the surge, recomputes stress
// and the high-risk flag from the scaled value, and discounts every
// confidence by the scenario factor.
func adjustForecast(baseline model.Forecast, p ScenarioParams, totalCapacity int, now time.Time) model.Forecast {
	adjusted := make([]model.DailyPrediction, len(baseline.Predictions))
	for i, day := range baseline.Predictions {
		beds := int(float64(day.PredictedBeds) * (1 + p.AdmissionSurge*surgeBedFactor))
		if beds < 0 {
			beds = 0
		}
		stress := BedStress(beds, totalCapacity)
		adjusted[i] = model.DailyPrediction{
			Date:          day.Date,
			PredictedBeds: beds,
			BedStress:     stress,
			Confidence:    day.Confidence * scenarioConfidenceFactor,
			IsHighRisk:    stress > model.HighRiskBedStress,
		}
	}

	return model.Forecast{
		Predictions:       adjusted,
		OverallConfidence: baseline.OverallConfidence * scenarioConfidenceFactor,
		GeneratedAt:       now,
	}
}

// impactSummary is a deterministic textual diff of baseline vs scenario:
// stress delta, risk delta, high-risk-day delta, and a categorical overall
// assessment with fixed thresholds.
func impactSummary(
	p ScenarioParams,
	baseline, scenario model.Forecast,
	baselineRisk, scenarioRisk model.StaffRiskScore,
) string {
	var lines []string

	lines = append(lines,
		"Scenario Parameters:",
		fmt.Sprintf("- Staff sick rate: %.1f%%", p.SickRate*100),
		fmt.Sprintf("- Admission surge: %+.1f%%", p.AdmissionSurge*100),
		"",
	)

	baselineStress := baseline.AverageStress()
	scenarioStress := scenario.AverageStress()
	stressChange := scenarioStress - baselineStress

	lines = append(lines,
		"Bed Stress Impact:",
		fmt.Sprintf("- Baseline average: %.1f%%", baselineStress),
		fmt.Sprintf("- Scenario average: %.1f%%", scenarioStress),
		fmt.Sprintf("- Change: %+.1f%%", stressChange),
	)
	if scenarioStress > model.HighRiskBedStress {
		lines = append(lines, "- WARNING: Scenario results in HIGH RISK bed stress levels")
	}
	lines = append(lines, "")

	riskChange := scenarioRisk.RiskScore - baselineRisk.RiskScore
	lines = append(lines,
		"Staff Risk Impact:",
		fmt.Sprintf("- Baseline risk: %.1f", baselineRisk.RiskScore),
		fmt.Sprintf("- Scenario risk: %.1f", scenarioRisk.RiskScore),
		fmt.Sprintf("- Change: %+.1f", riskChange),
	)
	if scenarioRisk.IsCritical {
		lines = append(lines, "- WARNING: Scenario results in CRITICAL staff risk levels")
	}
	lines = append(lines, "")

	baselineHigh := baseline.HighRiskDays()
	scenarioHigh := scenario.HighRiskDays()
	lines = append(lines,
		"High-Risk Days:",
		fmt.Sprintf("- Baseline: %d out of %d days", baselineHigh, len(baseline.Predictions)),
		fmt.Sprintf("- Scenario: %d out of %d days", scenarioHigh, len(scenario.Predictions)),
	)
	switch {
	case scenarioHigh > baselineHigh:
		lines = append(lines, fmt.Sprintf("- Scenario adds %d additional high-risk days", scenarioHigh-baselineHigh))
	case scenarioHigh < baselineHigh:
		lines = append(lines, fmt.Sprintf("- Scenario reduces high-risk days by %d", baselineHigh-scenarioHigh))
	default:
		lines = append(lines, "- No change in high-risk days")
	}
	lines = append(lines, "")

	switch {
	case stressChange > 10 || riskChange > 10:
		lines = append(lines, "Overall Assessment: SIGNIFICANT NEGATIVE IMPACT - Immediate mitigation required")
	case stressChange > 5 || riskChange > 5:
		lines = append(lines, "Overall Assessment: MODERATE NEGATIVE IMPACT - Proactive measures recommended")
	case stressChange < -5 || riskChange < -5:
		lines = append(lines, "Overall Assessment: POSITIVE IMPACT - Scenario improves hospital capacity")
	default:
		lines = append(lines, "Overall Assessment: MINIMAL IMPACT - Scenario has limited effect on operations")
	}

	return strings.Join(lines, "\n")
}
