package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wardsignal/hospital-stress-backend/internal/model"
)

// RecordsSince returns all capacity records on or after cutoff, ordered by
// date ascending. An empty result is not an error — the engine's quality
// scoring and fallback paths handle short or absent history.
func (s *Postgres) RecordsSince(ctx context.Context, cutoff time.Time) ([]model.CapacityRecord, error) {
	const q = `
		SELECT date, admissions, beds_occupied, staff_on_duty, overload_flag
		FROM capacity_log
		WHERE date >= $1
		ORDER BY date ASC`

	rows, err := s.pool.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: query capacity records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// OverloadsSince returns the capacity records flagged as overload days on or
// after cutoff, ordered by date ascending. Used by the staff-risk pattern
// analysis and the crisis-lesson paths.
func (s *Postgres) OverloadsSince(ctx context.Context, cutoff time.Time) ([]model.CapacityRecord, error) {
	const q = `
		SELECT date, admissions, beds_occupied, staff_on_duty, overload_flag
		FROM capacity_log
		WHERE date >= $1 AND overload_flag = true
		ORDER BY date ASC`

	rows, err := s.pool.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: query overload records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords drains a capacity_log result set. NULL numeric columns map to
// the missing sentinel so the repair step can forward-fill them.
func scanRecords(rows *sql.Rows) ([]model.CapacityRecord, error) {
	records := []model.CapacityRecord{}
	for rows.Next() {
		var (
			r                       model.CapacityRecord
			admissions, beds, staff sql.NullInt64
		)
		if err := rows.Scan(&r.Date, &admissions, &beds, &staff, &r.OverloadFlag); err != nil {
			return nil, fmt.Errorf("store: scan capacity record: %w", err)
		}
		r.Admissions = nullableInt(admissions)
		r.BedsOccupied = nullableInt(beds)
		r.StaffOnDuty = nullableInt(staff)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate capacity records: %w", err)
	}
	return records, nil
}

// nullableInt maps a NULL column to the missing sentinel.
func nullableInt(v sql.NullInt64) int {
	if !v.Valid {
		return model.Missing
	}
	return int(v.Int64)
}
