package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// handleListCrises serves GET /api/crises?limit=N, newest first.
func (s *Server) handleListCrises(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	lessons, err := s.engine.Crises(r.Context(), limit)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, lessons)
}

type storeCrisisRequest struct {
	CrisisID          string    `json:"crisis_id"`
	Date              time.Time `json:"date"`
	CrisisDescription string    `json:"crisis_description"`
	BedStress         float64   `json:"bed_stress"`
	StaffRisk         float64   `json:"staff_risk"`
	ActionsTaken      []string  `json:"actions_taken"`
	Outcome           string    `json:"outcome"`
	LessonsLearned    string    `json:"lessons_learned"`
}

// handleStoreCrisis serves POST /api/crises. The crisis_id is optional; the
// store mints one when absent.
func (s *Server) handleStoreCrisis(w http.ResponseWriter, r *http.Request) {
	var req storeCrisisRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CrisisDescription == "" {
		respondErr(w, http.StatusBadRequest, "crisis_description is required")
		return
	}
	if req.BedStress < 0 || req.BedStress > 100 || req.StaffRisk < 0 || req.StaffRisk > 100 {
		respondErr(w, http.StatusBadRequest, "bed_stress and staff_risk must be between 0 and 100")
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	lesson := model.CrisisLesson{
		CrisisID:          req.CrisisID,
		Date:              req.Date,
		CrisisDescription: req.CrisisDescription,
		BedStress:         req.BedStress,
		StaffRisk:         req.StaffRisk,
		ActionsTaken:      req.ActionsTaken,
		Outcome:           req.Outcome,
		LessonsLearned:    req.LessonsLearned,
	}
	if err := s.engine.StoreCrisis(r.Context(), lesson); err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, map[string]string{"status": "stored"})
}
