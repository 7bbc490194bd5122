package predict

import (
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// Staff-to-admission ratio thresholds. These mirror typical hospital
// staffing guidance and could become hospital-specific configuration later.
const (
	optimalRatio  = 0.5 // 1 staff per 2 admissions
	warningRatio  = 0.3 // 1 staff per 3.3 admissions
	criticalRatio = 0.2 // 1 staff per 5 admissions
)

// Pattern-matching tolerances for "similar conditions" in overload history.
const (
	admissionTolerance = 20
	staffTolerance     = 5
)

// StaffRisk scores staffing overload risk (0-100) for the given predicted
// admissions and current staff, blending a ratio-based base risk (weight 0.6)
// with a historical-pattern risk (weight 0.4). overloads is the set of
// historical overload-flagged records; now anchors the recency calculations.
//
// The returned score always has a non-empty ContributingFactors list and
// IsCritical == (RiskScore > 75).
func StaffRisk(predictedAdmissions, currentStaff int, overloads []model.CapacityRecord, now time.Time) model.StaffRiskScore {
	base := baseStaffRisk(predictedAdmissions, currentStaff)
	pattern := patternRisk(predictedAdmissions, currentStaff, overloads)

	score := model.Clamp(base*0.6+pattern*0.4, 0, 100)

	return model.StaffRiskScore{
		RiskScore:           score,
		Confidence:          staffRiskConfidence(overloads, now),
		IsCritical:          score > model.CriticalStaffRisk,
		ContributingFactors: riskFactors(predictedAdmissions, currentStaff, score, overloads, now),
		GeneratedAt:         now,
	}
}

// baseStaffRisk maps the staff-per-admission ratio onto 0-100 using the three
// thresholds: adequate staffing lands in [0,20], tight in [20,50],
// understaffed in [50,80], and severe understaffing in [80,100]. Zero staff
// is maximum risk regardless of admissions.
func baseStaffRisk(predictedAdmissions, currentStaff int) float64 {
	if currentStaff <= 0 {
		return 100
	}

	admissions := predictedAdmissions
	if admissions < 1 {
		admissions = 1
	}
	ratio := float64(currentStaff) / float64(admissions)

	switch {
	case ratio >= optimalRatio:
		// Risk scales down from 20 as the ratio grows past optimal.
		risk := 20 * (1 - (ratio-optimalRatio)/optimalRatio)
		if risk < 0 {
			return 0
		}
		return risk
	case ratio >= warningRatio:
		position := (optimalRatio - ratio) / (optimalRatio - warningRatio)
		return 20 + position*30 // [20,50]
	case ratio >= criticalRatio:
		position := (warningRatio - ratio) / (warningRatio - criticalRatio)
		return 50 + position*30 // [50,80]
	default:
		extra := (criticalRatio - ratio) * 100
		if extra > 20 {
			extra = 20
		}
		return 80 + extra
	}
}

// patternRisk estimates risk from historical overload records. Days within
// tolerance of the current query drive the estimate; with no close match it
// falls back to a general-trend comparison, and with no overload history at
// all it returns a neutral 50.
func patternRisk(predictedAdmissions, currentStaff int, overloads []model.CapacityRecord) float64 {
	if len(overloads) == 0 {
		return 50
	}

	similar := 0
	for _, r := range overloads {
		admissionDiff := abs(r.Admissions - predictedAdmissions)
		staffDiff := abs(r.StaffOnDuty - currentStaff)
		if admissionDiff <= admissionTolerance && staffDiff <= staffTolerance {
			similar++
		}
	}

	if similar == 0 {
		return generalTrendRisk(predictedAdmissions, currentStaff, overloads)
	}

	frequency := float64(similar) / float64(len(overloads))
	risk := frequency * 100
	if risk > 90 {
		return 90
	}
	return risk
}

// generalTrendRisk compares current conditions to the average conditions
// during historical overloads: more admissions and less staff than the
// overload average pushes risk up, scaled from a base of 40 and capped at a
// 2x multiplier.
func generalTrendRisk(predictedAdmissions, currentStaff int, overloads []model.CapacityRecord) float64 {
	avgAdmissions, avgStaff := 0.0, 0.0
	for _, r := range overloads {
		avgAdmissions += float64(r.Admissions)
		avgStaff += float64(r.StaffOnDuty)
	}
	avgAdmissions /= float64(len(overloads))
	avgStaff /= float64(len(overloads))

	admissionRatio := float64(predictedAdmissions) / maxFloat(1, avgAdmissions)
	staffRatio := float64(currentStaff) / maxFloat(1, avgStaff)

	multiplier := admissionRatio / maxFloat(0.1, staffRatio)
	if multiplier > 2 {
		multiplier = 2
	}

	risk := 40 * multiplier
	if risk > 90 {
		return 90
	}
	return risk
}

// riskFactors builds the ordered, deterministic contributing-factors list.
// The order is fixed by the checklist below; the list is never empty.
func riskFactors(predictedAdmissions, currentStaff int, riskScore float64, overloads []model.CapacityRecord, now time.Time) []string {
	var factors []string

	admissions := predictedAdmissions
	if admissions < 1 {
		admissions = 1
	}
	ratio := float64(currentStaff) / float64(admissions)

	if ratio < criticalRatio {
		factors = append(factors, "Severely understaffed for predicted admission volume")
	} else if ratio < warningRatio {
		factors = append(factors, "Below optimal staffing levels")
	}

	if predictedAdmissions > 300 {
		factors = append(factors, "High admission volume predicted")
	}
	if currentStaff < 20 {
		factors = append(factors, "Low absolute staff count")
	}

	if len(overloads) > 0 {
		recent := 0
		avgAdmissions := 0.0
		for _, r := range overloads {
			if now.Sub(r.Date) <= 30*24*time.Hour {
				recent++
			}
			avgAdmissions += float64(r.Admissions)
		}
		avgAdmissions /= float64(len(overloads))

		if recent > 3 {
			factors = append(factors, "Recent history of frequent overload events")
		}
		if float64(predictedAdmissions) > avgAdmissions*0.9 {
			factors = append(factors, "Admission volume approaching historical overload levels")
		}
	}

	if riskScore > 90 {
		factors = append(factors, "Critical risk level - immediate action required")
	} else if riskScore > 75 {
		factors = append(factors, "High risk level - proactive measures recommended")
	}

	if len(factors) == 0 {
		if riskScore > 50 {
			factors = append(factors, "Moderate risk based on current staffing and admission predictions")
		} else {
			factors = append(factors, "Low risk - adequate staffing for predicted volume")
		}
	}

	return factors
}

// staffRiskConfidence blends a base confidence with a step function of the
// overload sample size and a recency bonus for overloads inside the last 90
// days (+2 each, capped at +20).
func staffRiskConfidence(overloads []model.CapacityRecord, now time.Time) float64 {
	const base = 70.0

	var dataConfidence float64
	switch n := len(overloads); {
	case n >= 50:
		dataConfidence = 100
	case n >= 20:
		dataConfidence = 85
	case n >= 10:
		dataConfidence = 70
	case n >= 5:
		dataConfidence = 55
	default:
		dataConfidence = 40
	}

	recent := 0
	for _, r := range overloads {
		if now.Sub(r.Date) <= 90*24*time.Hour {
			recent++
		}
	}
	recencyBonus := float64(recent) * 2
	if recencyBonus > 20 {
		recencyBonus = 20
	}

	confidence := (base + dataConfidence + recencyBonus) / 2
	if confidence > 100 {
		return 100
	}
	return confidence
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
