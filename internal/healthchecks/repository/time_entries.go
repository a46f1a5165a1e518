package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TimeEntry is one technician work session against a health check.
// ClockOutAt is nil while the session is open.
type TimeEntry struct {
	ID              uuid.UUID  `db:"id"`
	HealthCheckID   uuid.UUID  `db:"health_check_id"`
	OrganizationID  uuid.UUID  `db:"organization_id"`
	TechnicianID    uuid.UUID  `db:"technician_id"`
	ClockInAt       time.Time  `db:"clock_in_at"`
	ClockOutAt      *time.Time `db:"clock_out_at"`
	DurationMinutes *int       `db:"duration_minutes"`
	CreatedAt       time.Time  `db:"created_at"`
}

// durationMinutes rounds a session length to whole minutes.
func durationMinutes(in, out time.Time) int {
	return int(math.Round(out.Sub(in).Minutes()))
}

// OpenTimeEntry opens a work session for a technician on a check. If a stale
// open session exists it is closed first, in the same transaction, so at
// most one open entry per (check, technician) can ever exist. The closed
// stale entry, if any, is returned alongside the new one.
func (r *Repository) OpenTimeEntry(ctx context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (stale *TimeEntry, opened *TimeEntry, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing TimeEntry
	err = tx.QueryRow(ctx,
		`SELECT id, health_check_id, organization_id, technician_id, clock_in_at, created_at
		 FROM time_entries
		 WHERE health_check_id = $1 AND technician_id = $2 AND clock_out_at IS NULL
		 FOR UPDATE`,
		checkID, technicianID,
	).Scan(&existing.ID, &existing.HealthCheckID, &existing.OrganizationID,
		&existing.TechnicianID, &existing.ClockInAt, &existing.CreatedAt)
	switch {
	case err == nil:
		// Stale session from a crashed or abandoned client: close it rather
		// than rejecting the new clock-in.
		minutes := durationMinutes(existing.ClockInAt, now)
		if _, err := tx.Exec(ctx,
			`UPDATE time_entries SET clock_out_at = $2, duration_minutes = $3 WHERE id = $1`,
			existing.ID, now, minutes,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to close stale time entry: %w", err)
		}
		existing.ClockOutAt = &now
		existing.DurationMinutes = &minutes
		stale = &existing
	case errors.Is(err, pgx.ErrNoRows):
		// No open session; nothing to recover.
	default:
		return nil, nil, fmt.Errorf("failed to query open time entry: %w", err)
	}

	entry := TimeEntry{
		ID:             uuid.New(),
		HealthCheckID:  checkID,
		OrganizationID: orgID,
		TechnicianID:   technicianID,
		ClockInAt:      now,
		CreatedAt:      now,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO time_entries (id, health_check_id, organization_id, technician_id, clock_in_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.HealthCheckID, entry.OrganizationID, entry.TechnicianID, entry.ClockInAt, entry.CreatedAt,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to insert time entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit time entry: %w", err)
	}
	return stale, &entry, nil
}

// CloseTimeEntry closes the technician's open session on the check, computing
// its duration. Fails with a not_clocked_in conflict if no session is open.
func (r *Repository) CloseTimeEntry(ctx context.Context, checkID, orgID, technicianID uuid.UUID, now time.Time) (*TimeEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var entry TimeEntry
	err = tx.QueryRow(ctx,
		`SELECT id, health_check_id, organization_id, technician_id, clock_in_at, created_at
		 FROM time_entries
		 WHERE health_check_id = $1 AND organization_id = $2 AND technician_id = $3 AND clock_out_at IS NULL
		 FOR UPDATE`,
		checkID, orgID, technicianID,
	).Scan(&entry.ID, &entry.HealthCheckID, &entry.OrganizationID,
		&entry.TechnicianID, &entry.ClockInAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Conflict("technician is not clocked in").WithCode("not_clocked_in")
		}
		return nil, fmt.Errorf("failed to query open time entry: %w", err)
	}

	minutes := durationMinutes(entry.ClockInAt, now)
	if _, err := tx.Exec(ctx,
		`UPDATE time_entries SET clock_out_at = $2, duration_minutes = $3 WHERE id = $1`,
		entry.ID, now, minutes,
	); err != nil {
		return nil, fmt.Errorf("failed to close time entry: %w", err)
	}
	entry.ClockOutAt = &now
	entry.DurationMinutes = &minutes

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit time entry: %w", err)
	}
	return &entry, nil
}

// ListTimeEntries returns all sessions for a check, newest first.
func (r *Repository) ListTimeEntries(ctx context.Context, checkID, orgID uuid.UUID) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, health_check_id, organization_id, technician_id,
			clock_in_at, clock_out_at, duration_minutes, created_at
		 FROM time_entries
		 WHERE health_check_id = $1 AND organization_id = $2
		 ORDER BY clock_in_at DESC`,
		checkID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.ID, &e.HealthCheckID, &e.OrganizationID, &e.TechnicianID,
			&e.ClockInAt, &e.ClockOutAt, &e.DurationMinutes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}
	return entries, nil
}
