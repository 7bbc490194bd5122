// Package quality scores the cleanliness and completeness of a capacity
// record set and repairs missing values. It is intentionally dependency-free
// beyond the shared model types: pure functions, no I/O, no clock.
package quality

import (
	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// Completeness scores history length as a step function (0-100).
// Thresholds: ≥180 days → 100, ≥90 → 80, ≥30 → 60, ≥7 → 40, else 20.
// An empty set scores 0.
func Completeness(records []model.CapacityRecord) float64 {
	days := len(records)
	switch {
	case days == 0:
		return 0
	case days >= 180:
		return 100
	case days >= 90:
		return 80
	case days >= 30:
		return 60
	case days >= 7:
		return 40
	default:
		return 20
	}
}

// Quality scores record cleanliness (0-100). Starts at 100 and deducts:
//
//	-5 per record with any negative raw field (missing sentinel)
//	-2 per record whose occupancy exceeds 1.5x total capacity
//	-1 per record with admissions over 500
//
// An empty set scores 0. Call this on the raw records, before Repair —
// repair erases exactly the signals this function measures.
func Quality(records []model.CapacityRecord, totalCapacity int) float64 {
	if len(records) == 0 {
		return 0
	}

	score := 100.0
	for _, r := range records {
		if r.Admissions < 0 || r.BedsOccupied < 0 || r.StaffOnDuty < 0 {
			score -= 5
		}
		if float64(r.BedsOccupied) > float64(totalCapacity)*1.5 {
			score -= 2
		}
		if r.Admissions > 500 {
			score -= 1
		}
	}

	return model.Clamp(score, 0, 100)
}

// Repair forward-fills missing numeric values in date order: any negative
// field takes the most recent prior valid value for that field, or 0 when no
// prior value exists. The input slice is not modified; the result preserves
// record count and order. Repair never fails.
func Repair(records []model.CapacityRecord) []model.CapacityRecord {
	if len(records) == 0 {
		return []model.CapacityRecord{}
	}

	out := make([]model.CapacityRecord, len(records))
	copy(out, records)

	lastAdmissions, lastBeds, lastStaff := 0, 0, 0
	for i := range out {
		if out[i].Admissions < 0 {
			out[i].Admissions = lastAdmissions
		} else {
			lastAdmissions = out[i].Admissions
		}
		if out[i].BedsOccupied < 0 {
			out[i].BedsOccupied = lastBeds
		} else {
			lastBeds = out[i].BedsOccupied
		}
		if out[i].StaffOnDuty < 0 {
			out[i].StaffOnDuty = lastStaff
		} else {
			lastStaff = out[i].StaffOnDuty
		}
	}

	return out
}
