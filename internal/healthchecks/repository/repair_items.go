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

// RepairItem is the database model for one billable line item.
type RepairItem struct {
	ID              uuid.UUID        `db:"id"`
	HealthCheckID   uuid.UUID        `db:"health_check_id"`
	OrganizationID  uuid.UUID        `db:"organization_id"`
	CheckResultID   *uuid.UUID       `db:"check_result_id"`
	Title           string           `db:"title"`
	Description     *string          `db:"description"`
	RAGStatus       domain.RAGStatus `db:"rag_status"`
	PartsCostCents  int64            `db:"parts_cost_cents"`
	LabourCostCents int64            `db:"labour_cost_cents"`
	TotalPriceCents int64            `db:"total_price_cents"`
	IsVisible       bool             `db:"is_visible"`
	IsApproved      bool             `db:"is_approved"`
	IsMOTFailure    bool             `db:"is_mot_failure"`
	FollowUpDate    *time.Time       `db:"follow_up_date"`
	WorkCompletedAt *time.Time       `db:"work_completed_at"`
	WorkCompletedBy *uuid.UUID       `db:"work_completed_by"`
	SortOrder       int              `db:"sort_order"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

const itemNotFoundMsg = "repair item not found"

const itemColumns = `id, health_check_id, organization_id, check_result_id, title, description,
	rag_status, parts_cost_cents, labour_cost_cents, total_price_cents,
	is_visible, is_approved, is_mot_failure, follow_up_date,
	work_completed_at, work_completed_by, sort_order, created_at, updated_at`

func scanItem(row pgx.Row) (*RepairItem, error) {
	var it RepairItem
	err := row.Scan(
		&it.ID, &it.HealthCheckID, &it.OrganizationID, &it.CheckResultID, &it.Title, &it.Description,
		&it.RAGStatus, &it.PartsCostCents, &it.LabourCostCents, &it.TotalPriceCents,
		&it.IsVisible, &it.IsApproved, &it.IsMOTFailure, &it.FollowUpDate,
		&it.WorkCompletedAt, &it.WorkCompletedBy, &it.SortOrder, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(itemNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan repair item: %w", err)
	}
	return &it, nil
}

// ListItems returns all repair items for a check ordered by sort order.
func (r *Repository) ListItems(ctx context.Context, checkID, orgID uuid.UUID) ([]RepairItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM repair_items
		 WHERE health_check_id = $1 AND organization_id = $2
		 ORDER BY sort_order ASC`,
		checkID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query repair items: %w", err)
	}
	defer rows.Close()

	var items []RepairItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repair items: %w", err)
	}
	return items, nil
}

// GetItem retrieves a single repair item scoped to the organization.
func (r *Repository) GetItem(ctx context.Context, id, orgID uuid.UUID) (*RepairItem, error) {
	return scanItem(r.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM repair_items WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	))
}

// InsertItems inserts a batch of repair items in a single transaction.
func (r *Repository) InsertItems(ctx context.Context, items []RepairItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO repair_items (
			id, health_check_id, organization_id, check_result_id, title, description,
			rag_status, parts_cost_cents, labour_cost_cents, total_price_cents,
			is_visible, is_approved, is_mot_failure, follow_up_date, sort_order,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	for _, it := range items {
		if _, err := tx.Exec(ctx, query,
			it.ID, it.HealthCheckID, it.OrganizationID, it.CheckResultID, it.Title, it.Description,
			it.RAGStatus, it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents,
			it.IsVisible, it.IsApproved, it.IsMOTFailure, it.FollowUpDate, it.SortOrder,
			it.CreatedAt, it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert repair item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// UpdateItem writes all mutable fields of a repair item.
func (r *Repository) UpdateItem(ctx context.Context, it *RepairItem) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE repair_items SET
			title = $3, description = $4, rag_status = $5,
			parts_cost_cents = $6, labour_cost_cents = $7, total_price_cents = $8,
			is_visible = $9, is_approved = $10, is_mot_failure = $11,
			follow_up_date = $12, work_completed_at = $13, work_completed_by = $14,
			sort_order = $15, updated_at = $16
		 WHERE id = $1 AND organization_id = $2`,
		it.ID, it.OrganizationID, it.Title, it.Description, it.RAGStatus,
		it.PartsCostCents, it.LabourCostCents, it.TotalPriceCents,
		it.IsVisible, it.IsApproved, it.IsMOTFailure,
		it.FollowUpDate, it.WorkCompletedAt, it.WorkCompletedBy,
		it.SortOrder, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update repair item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(itemNotFoundMsg)
	}
	return nil
}

// DeleteItem hard-deletes a repair item.
func (r *Repository) DeleteItem(ctx context.Context, id, orgID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM repair_items WHERE id = $1 AND organization_id = $2`,
		id, orgID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete repair item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(itemNotFoundMsg)
	}
	return nil
}
