package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wardsignal/hospital-stress-backend/internal/predict"
)

// handleForecast serves GET /api/predictions/forecast?days=7.
// days is optional; invalid values are rejected rather than defaulted so a
// typo'd query string never silently returns the wrong horizon.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	days := predict.DefaultHorizonDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 30 {
			respondErr(w, http.StatusBadRequest, "days must be an integer between 1 and 30")
			return
		}
		days = parsed
	}

	respond(w, http.StatusOK, s.engine.Forecast(r.Context(), days))
}

// handleStaffRisk serves GET /api/predictions/staff-risk?admissions=N&staff=N.
func (s *Server) handleStaffRisk(w http.ResponseWriter, r *http.Request) {
	admissions, err := strconv.Atoi(r.URL.Query().Get("admissions"))
	if err != nil || admissions < 0 {
		respondErr(w, http.StatusBadRequest, "admissions must be a non-negative integer")
		return
	}
	staff, err := strconv.Atoi(r.URL.Query().Get("staff"))
	if err != nil || staff < 0 {
		respondErr(w, http.StatusBadRequest, "staff must be a non-negative integer")
		return
	}

	respond(w, http.StatusOK, s.engine.StaffRisk(r.Context(), admissions, staff))
}

type recommendationsRequest struct {
	BedStress float64 `json:"bed_stress"`
	StaffRisk float64 `json:"staff_risk"`
}

// handleRecommendations serves POST /api/predictions/recommendations.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.BedStress < 0 || req.BedStress > 100 {
		respondErr(w, http.StatusBadRequest, "bed_stress must be between 0 and 100")
		return
	}
	if req.StaffRisk < 0 || req.StaffRisk > 100 {
		respondErr(w, http.StatusBadRequest, "staff_risk must be between 0 and 100")
		return
	}

	respond(w, http.StatusOK, s.engine.Recommend(r.Context(), req.BedStress, req.StaffRisk))
}

// handleScenario serves POST /api/predictions/scenario. Out-of-range
// parameters come back as 400 with the offending parameter named; this is the
// only prediction operation with a caller-visible failure mode.
func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	var params predict.ScenarioParams
	if !decode(w, r, &params) {
		return
	}

	result, err := s.engine.SimulateScenario(r.Context(), params)
	if err != nil {
		var rangeErr *predict.RangeError
		if errors.As(err, &rangeErr) {
			respondErr(w, http.StatusBadRequest, rangeErr.Error())
			return
		}
		s.respondInternalErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, result)
}

// handleDashboard serves GET /api/dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.engine.Dashboard(r.Context()))
}

// handleAlerts serves GET /api/alerts: threshold evaluation only, delivery is
// a separate concern.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.engine.EvaluateAlerts(r.Context()))
}

// handleInvalidateCache serves POST /api/cache/invalidate.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.InvalidateCache(r.Context()); err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "invalidated"})
}
