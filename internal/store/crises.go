package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// ListCrises returns up to limit crisis lessons, newest first. Similarity
// scores are zero here — retrieval assigns them. An empty table returns an
// empty slice, not an error.
func (s *Postgres) ListCrises(ctx context.Context, limit int) ([]model.CrisisLesson, error) {
	if limit <= 0 {
		limit = 100
	}

	const q = `
		SELECT crisis_id, date, crisis_description, bed_stress, staff_risk,
		       actions_taken, outcome, lessons_learned
		FROM crisis_history
		ORDER BY date DESC
		LIMIT $1`

	rows, err := s.pool.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query crises: %w", err)
	}
	defer rows.Close()

	crises := []model.CrisisLesson{}
	for rows.Next() {
		var (
			c       model.CrisisLesson
			actions []byte
		)
		if err := rows.Scan(&c.CrisisID, &c.Date, &c.CrisisDescription,
			&c.BedStress, &c.StaffRisk, &actions, &c.Outcome, &c.LessonsLearned); err != nil {
			return nil, fmt.Errorf("store: scan crisis: %w", err)
		}
		if err := json.Unmarshal(actions, &c.ActionsTaken); err != nil {
			// A malformed actions_taken blob degrades to a single raw entry
			// rather than failing the whole retrieval.
			c.ActionsTaken = []string{string(actions)}
		}
		crises = append(crises, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate crises: %w", err)
	}
	return crises, nil
}

// InsertCrisis stores a new crisis lesson. A missing CrisisID is minted here
// so callers can submit lessons without inventing identifiers.
func (s *Postgres) InsertCrisis(ctx context.Context, c model.CrisisLesson) error {
	if c.CrisisID == "" {
		c.CrisisID = uuid.NewString()
	}

	actions, err := json.Marshal(c.ActionsTaken)
	if err != nil {
		return fmt.Errorf("store: marshal actions_taken: %w", err)
	}

	const q = `
		INSERT INTO crisis_history
			(crisis_id, date, crisis_description, bed_stress, staff_risk,
			 actions_taken, outcome, lessons_learned)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := s.pool.ExecContext(ctx, q,
		c.CrisisID, c.Date, c.CrisisDescription, c.BedStress, c.StaffRisk,
		actions, c.Outcome, c.LessonsLearned); err != nil {
		return fmt.Errorf("store: insert crisis %q: %w", c.CrisisID, err)
	}
	return nil
}
