package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransitionParams describes an atomic status change. From is the status the
// caller validated against; if the row has moved on by the time the
// transaction locks it, the transition fails with a conflict instead of
// silently applying a change that was validated against stale state.
type TransitionParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	From           domain.Status
	To             domain.Status
	ActorID        uuid.UUID
	Source         string
	Notes          *string

	// Optional field updates applied together with the status change.
	AssignedTechnicianID *uuid.UUID
	ArrivedAt            *time.Time
	SentAt               *time.Time
	ClosedAt             *time.Time
	ClosedBy             *uuid.UUID
	PublicToken          *string
	TokenExpiresAt       *time.Time
}

// Transition performs the read-validate-write-append sequence atomically:
// lock the row, verify the status still matches From, apply the update and
// append one history row.
func (r *Repository) Transition(ctx context.Context, p TransitionParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.Status
	var deletedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT status, deleted_at FROM health_checks
		 WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		p.ID, p.OrganizationID,
	).Scan(&current, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(checkNotFoundMsg)
		}
		return fmt.Errorf("failed to lock health check: %w", err)
	}
	if deletedAt != nil {
		return apperr.Conflict("health check is deleted").WithCode("already_deleted")
	}
	if current != p.From {
		return apperr.Conflict("health check status changed concurrently").
			WithCode("status_changed").
			WithDetails(map[string]string{
				"expected": string(p.From),
				"current":  string(current),
			})
	}

	_, err = tx.Exec(ctx,
		`UPDATE health_checks SET
			status = $3,
			assigned_technician_id = COALESCE($4, assigned_technician_id),
			arrived_at = COALESCE($5, arrived_at),
			sent_at = COALESCE($6, sent_at),
			closed_at = COALESCE($7, closed_at),
			closed_by = COALESCE($8, closed_by),
			public_token = COALESCE($9, public_token),
			token_expires_at = COALESCE($10, token_expires_at),
			updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		p.ID, p.OrganizationID, p.To,
		p.AssignedTechnicianID, p.ArrivedAt, p.SentAt, p.ClosedAt, p.ClosedBy,
		p.PublicToken, p.TokenExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update health check status: %w", err)
	}

	from := p.From
	if err := insertHistory(ctx, tx, HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: p.ID,
		FromStatus:    &from,
		ToStatus:      p.To,
		ActorID:       p.ActorID,
		Source:        p.Source,
		Notes:         p.Notes,
		CreatedAt:     time.Now(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SoftDeleteParams describes a soft deletion.
type SoftDeleteParams struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Reason         domain.DeleteReason
	Notes          *string
	ActorID        uuid.UUID
	Source         string
}

// SoftDelete marks a check deleted after re-validating deletability under the
// row lock, and appends a history row with the "deleted" pseudo-status.
func (r *Repository) SoftDelete(ctx context.Context, p SoftDeleteParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := softDeleteInTx(ctx, tx, p); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// BulkSoftDelete deletes every deletable check among ids in one transaction
// and reports how many were skipped because they were already deleted or in
// a non-deletable status. Missing ids count as skipped.
func (r *Repository) BulkSoftDelete(ctx context.Context, ids []uuid.UUID, orgID uuid.UUID, reason domain.DeleteReason, notes *string, actorID uuid.UUID, source string) (deleted, skipped int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		err := softDeleteInTx(ctx, tx, SoftDeleteParams{
			ID:             id,
			OrganizationID: orgID,
			Reason:         reason,
			Notes:          notes,
			ActorID:        actorID,
			Source:         source,
		})
		switch {
		case err == nil:
			deleted++
		case apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindConflict):
			skipped++
		default:
			return 0, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit bulk delete: %w", err)
	}
	return deleted, skipped, nil
}

func softDeleteInTx(ctx context.Context, tx pgx.Tx, p SoftDeleteParams) error {
	var current domain.Status
	var deletedAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT status, deleted_at FROM health_checks
		 WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		p.ID, p.OrganizationID,
	).Scan(&current, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(checkNotFoundMsg)
		}
		return fmt.Errorf("failed to lock health check: %w", err)
	}

	switch domain.CheckDeletable(current, deletedAt != nil) {
	case domain.DeletionAlreadyDeleted:
		return apperr.Conflict("health check is already deleted").WithCode("already_deleted")
	case domain.DeletionWrongStatus:
		return apperr.Conflict("health check cannot be deleted in its current status").
			WithCode("invalid_state").
			WithDetails(map[string]string{"status": string(current)})
	}

	_, err = tx.Exec(ctx,
		`UPDATE health_checks SET
			deleted_at = now(), deleted_by = $3, delete_reason = $4, delete_notes = $5,
			updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		p.ID, p.OrganizationID, p.ActorID, string(p.Reason), p.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete health check: %w", err)
	}

	from := current
	return insertHistory(ctx, tx, HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: p.ID,
		FromStatus:    &from,
		ToStatus:      domain.StatusDeleted,
		ActorID:       p.ActorID,
		Source:        p.Source,
		Notes:         p.Notes,
		CreatedAt:     time.Now(),
	})
}

// Restore clears all deletion fields and forces status back to "created",
// appending a deleted → created history row.
func (r *Repository) Restore(ctx context.Context, id, orgID, actorID uuid.UUID, source string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var deletedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT deleted_at FROM health_checks
		 WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		id, orgID,
	).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(checkNotFoundMsg)
		}
		return fmt.Errorf("failed to lock health check: %w", err)
	}
	if deletedAt == nil {
		return apperr.Conflict("health check is not deleted").WithCode("not_deleted")
	}

	_, err = tx.Exec(ctx,
		`UPDATE health_checks SET
			deleted_at = NULL, deleted_by = NULL, delete_reason = NULL, delete_notes = NULL,
			status = $3, updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		id, orgID, domain.StatusCreated,
	)
	if err != nil {
		return fmt.Errorf("failed to restore health check: %w", err)
	}

	from := domain.StatusDeleted
	if err := insertHistory(ctx, tx, HistoryRow{
		ID:            uuid.New(),
		HealthCheckID: id,
		FromStatus:    &from,
		ToStatus:      domain.StatusCreated,
		ActorID:       actorID,
		Source:        source,
		CreatedAt:     time.Now(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
