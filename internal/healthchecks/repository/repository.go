// Package repository provides database access for the health-check module.
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
	"github.com/jackc/pgx/v5/pgxpool"
)

// ── Domain Models ─────────────────────────────────────────────────────────────

// HealthCheck is the database model for one inspection job.
type HealthCheck struct {
	ID                   uuid.UUID     `db:"id"`
	OrganizationID       uuid.UUID     `db:"organization_id"`
	SiteID               uuid.UUID     `db:"site_id"`
	VehicleID            uuid.UUID     `db:"vehicle_id"`
	CustomerID           uuid.UUID     `db:"customer_id"`
	TemplateID           uuid.UUID     `db:"template_id"`
	AssignedTechnicianID *uuid.UUID    `db:"assigned_technician_id"`
	AdvisorID            *uuid.UUID    `db:"advisor_id"`
	Status               domain.Status `db:"status"`
	GreenCount           int           `db:"green_count"`
	AmberCount           int           `db:"amber_count"`
	RedCount             int           `db:"red_count"`
	TotalPartsCents      int64         `db:"total_parts_cents"`
	TotalLabourCents     int64         `db:"total_labour_cents"`
	TotalAmountCents     int64         `db:"total_amount_cents"`
	MileageIn            *int          `db:"mileage_in"`
	MileageOut           *int          `db:"mileage_out"`
	PublicToken          *string       `db:"public_token"`
	TokenExpiresAt       *time.Time    `db:"token_expires_at"`
	SentAt               *time.Time    `db:"sent_at"`
	FirstOpenedAt        *time.Time    `db:"first_opened_at"`
	ArrivedAt            *time.Time    `db:"arrived_at"`
	ClosedAt             *time.Time    `db:"closed_at"`
	ClosedBy             *uuid.UUID    `db:"closed_by"`
	DeletedAt            *time.Time    `db:"deleted_at"`
	DeletedBy            *uuid.UUID    `db:"deleted_by"`
	DeleteReason         *string       `db:"delete_reason"`
	DeleteNotes          *string       `db:"delete_notes"`
	CreatedAt            time.Time     `db:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at"`
}

// IsDeleted reports whether the check is soft-deleted.
func (hc *HealthCheck) IsDeleted() bool {
	return hc.DeletedAt != nil
}

// ListParams contains parameters for listing health checks.
type ListParams struct {
	OrganizationID uuid.UUID
	SiteID         *uuid.UUID
	Status         *domain.Status
	TechnicianID   *uuid.UUID
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// ListResult contains the paginated result of listing health checks.
type ListResult struct {
	Items      []HealthCheck
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

const checkNotFoundMsg = "health check not found"

// ── Repository ────────────────────────────────────────────────────────────────

// Repository provides database operations for health checks and their
// dependent records (repair items, results, time entries, history,
// authorizations; see sibling files).
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new health-check repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const checkColumns = `id, organization_id, site_id, vehicle_id, customer_id, template_id,
	assigned_technician_id, advisor_id, status,
	green_count, amber_count, red_count,
	total_parts_cents, total_labour_cents, total_amount_cents,
	mileage_in, mileage_out, public_token, token_expires_at,
	sent_at, first_opened_at, arrived_at, closed_at, closed_by,
	deleted_at, deleted_by, delete_reason, delete_notes,
	created_at, updated_at`

func scanCheck(row pgx.Row) (*HealthCheck, error) {
	var hc HealthCheck
	err := row.Scan(
		&hc.ID, &hc.OrganizationID, &hc.SiteID, &hc.VehicleID, &hc.CustomerID, &hc.TemplateID,
		&hc.AssignedTechnicianID, &hc.AdvisorID, &hc.Status,
		&hc.GreenCount, &hc.AmberCount, &hc.RedCount,
		&hc.TotalPartsCents, &hc.TotalLabourCents, &hc.TotalAmountCents,
		&hc.MileageIn, &hc.MileageOut, &hc.PublicToken, &hc.TokenExpiresAt,
		&hc.SentAt, &hc.FirstOpenedAt, &hc.ArrivedAt, &hc.ClosedAt, &hc.ClosedBy,
		&hc.DeletedAt, &hc.DeletedBy, &hc.DeleteReason, &hc.DeleteNotes,
		&hc.CreatedAt, &hc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(checkNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan health check: %w", err)
	}
	return &hc, nil
}

// CreateCheck inserts a health check and its first history row in one
// transaction.
func (r *Repository) CreateCheck(ctx context.Context, hc *HealthCheck, first HistoryRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO health_checks (
			id, organization_id, site_id, vehicle_id, customer_id, template_id,
			assigned_technician_id, advisor_id, status, mileage_in, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := tx.Exec(ctx, query,
		hc.ID, hc.OrganizationID, hc.SiteID, hc.VehicleID, hc.CustomerID, hc.TemplateID,
		hc.AssignedTechnicianID, hc.AdvisorID, hc.Status, hc.MileageIn, hc.CreatedAt, hc.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert health check: %w", err)
	}

	if err := insertHistory(ctx, tx, first); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetCheck retrieves a health check by id scoped to the organization.
// Soft-deleted checks are returned; callers decide whether that matters.
func (r *Repository) GetCheck(ctx context.Context, id, orgID uuid.UUID) (*HealthCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM health_checks WHERE id = $1 AND organization_id = $2`
	return scanCheck(r.pool.QueryRow(ctx, query, id, orgID))
}

// GetCheckByToken retrieves a non-deleted health check by its public token,
// provided the token has not expired.
func (r *Repository) GetCheckByToken(ctx context.Context, token string) (*HealthCheck, error) {
	query := `SELECT ` + checkColumns + ` FROM health_checks
		WHERE public_token = $1
			AND deleted_at IS NULL
			AND (token_expires_at IS NULL OR token_expires_at > now())`
	return scanCheck(r.pool.QueryRow(ctx, query, token))
}

// ExpiredLinkRef identifies a published check whose report link has lapsed.
type ExpiredLinkRef struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
}

// ListExpiredLinkRefs returns published checks whose token expired before the
// given instant and that have not yet reached a customer decision.
func (r *Repository) ListExpiredLinkRefs(ctx context.Context, before time.Time, limit int) ([]ExpiredLinkRef, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, organization_id FROM health_checks
		 WHERE status IN ('sent', 'delivered', 'opened', 'partial_response')
			AND deleted_at IS NULL
			AND token_expires_at IS NOT NULL
			AND token_expires_at < $1
		 ORDER BY token_expires_at ASC
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired links: %w", err)
	}
	defer rows.Close()

	var refs []ExpiredLinkRef
	for rows.Next() {
		var ref ExpiredLinkRef
		if err := rows.Scan(&ref.ID, &ref.OrganizationID); err != nil {
			return nil, fmt.Errorf("failed to scan expired link: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired links: %w", err)
	}
	return refs, nil
}

// ListChecks retrieves health checks with filtering and pagination.
func (r *Repository) ListChecks(ctx context.Context, params ListParams) (*ListResult, error) {
	var statusParam any
	if params.Status != nil {
		statusParam = string(*params.Status)
	}
	var siteParam any
	if params.SiteID != nil {
		siteParam = *params.SiteID
	}
	var techParam any
	if params.TechnicianID != nil {
		techParam = *params.TechnicianID
	}

	baseQuery := `
		FROM health_checks
		WHERE organization_id = $1
			AND ($2::uuid IS NULL OR site_id = $2)
			AND ($3::text IS NULL OR status = $3)
			AND ($4::uuid IS NULL OR assigned_technician_id = $4)
			AND ($5::boolean OR deleted_at IS NULL)
	`
	args := []any{params.OrganizationID, siteParam, statusParam, techParam, params.IncludeDeleted}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count health checks: %w", err)
	}

	totalPages := (total + params.PageSize - 1) / params.PageSize
	offset := (params.Page - 1) * params.PageSize

	selectQuery := `SELECT ` + checkColumns + baseQuery + `
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list health checks: %w", err)
	}
	defer rows.Close()

	var items []HealthCheck
	for rows.Next() {
		hc, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate health checks: %w", err)
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateAssignedTechnician sets the technician without touching status or
// history (idempotent re-assignment outside "created").
func (r *Repository) UpdateAssignedTechnician(ctx context.Context, id, orgID, technicianID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE health_checks SET assigned_technician_id = $3, updated_at = now()
		 WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`,
		id, orgID, technicianID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assigned technician: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(checkNotFoundMsg)
	}
	return nil
}

// UpdateCheckTotals writes recomputed financial rollups.
func (r *Repository) UpdateCheckTotals(ctx context.Context, id, orgID uuid.UUID, partsCents, labourCents, amountCents int64) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE health_checks SET total_parts_cents = $3, total_labour_cents = $4,
			total_amount_cents = $5, updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		id, orgID, partsCents, labourCents, amountCents,
	)
	if err != nil {
		return fmt.Errorf("failed to update totals: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(checkNotFoundMsg)
	}
	return nil
}

// UpdateRAGCounts writes recomputed finding counts.
func (r *Repository) UpdateRAGCounts(ctx context.Context, id, orgID uuid.UUID, green, amber, red int) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE health_checks SET green_count = $3, amber_count = $4, red_count = $5, updated_at = now()
		 WHERE id = $1 AND organization_id = $2`,
		id, orgID, green, amber, red,
	)
	if err != nil {
		return fmt.Errorf("failed to update rag counts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(checkNotFoundMsg)
	}
	return nil
}

// MarkFirstOpened stamps first_opened_at once; later opens are no-ops.
func (r *Repository) MarkFirstOpened(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE health_checks SET first_opened_at = $2, updated_at = now()
		 WHERE id = $1 AND first_opened_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark first opened: %w", err)
	}
	return nil
}
