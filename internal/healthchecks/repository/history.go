package repository

import (
	"context"
	"fmt"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HistoryRow is one append-only audit record of a status change.
// FromStatus is nil for the row written at creation time.
type HistoryRow struct {
	ID            uuid.UUID      `db:"id"`
	HealthCheckID uuid.UUID      `db:"health_check_id"`
	FromStatus    *domain.Status `db:"from_status"`
	ToStatus      domain.Status  `db:"to_status"`
	ActorID       uuid.UUID      `db:"actor_id"`
	Source        string         `db:"source"`
	Notes         *string        `db:"notes"`
	CreatedAt     time.Time      `db:"created_at"`
}

// insertHistory appends one audit row inside the caller's transaction.
// History rows are never updated or deleted.
func insertHistory(ctx context.Context, tx pgx.Tx, row HistoryRow) error {
	var from *string
	if row.FromStatus != nil {
		s := string(*row.FromStatus)
		from = &s
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO status_history (id, health_check_id, from_status, to_status, actor_id, source, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.HealthCheckID, from, string(row.ToStatus), row.ActorID, row.Source, row.Notes, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

// ListHistory returns the audit trail for a check, oldest first.
func (r *Repository) ListHistory(ctx context.Context, checkID, orgID uuid.UUID) ([]HistoryRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT h.id, h.health_check_id, h.from_status, h.to_status, h.actor_id, h.source, h.notes, h.created_at
		 FROM status_history h
		 JOIN health_checks hc ON hc.id = h.health_check_id
		 WHERE h.health_check_id = $1 AND hc.organization_id = $2
		 ORDER BY h.created_at ASC`,
		checkID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []HistoryRow
	for rows.Next() {
		var row HistoryRow
		var from *string
		if err := rows.Scan(&row.ID, &row.HealthCheckID, &from, &row.ToStatus,
			&row.ActorID, &row.Source, &row.Notes, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		if from != nil {
			s := domain.Status(*from)
			row.FromStatus = &s
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status history: %w", err)
	}
	return history, nil
}
