package repository

import (
	"context"
	"fmt"
	"time"

	"workshop_portal_backend/internal/healthchecks/domain"

	"github.com/google/uuid"
)

// CheckResult is one inspection finding against a template item, joined with
// the template item's name and description so the repair-item generator can
// derive titles without a second query.
type CheckResult struct {
	ID                  uuid.UUID        `db:"id"`
	HealthCheckID       uuid.UUID        `db:"health_check_id"`
	TemplateItemID      uuid.UUID        `db:"template_item_id"`
	RAGStatus           domain.RAGStatus `db:"rag_status"`
	Value               *string          `db:"value"`
	Notes               *string          `db:"notes"`
	IsMOTFailure        bool             `db:"is_mot_failure"`
	TemplateItemName    *string          `db:"template_item_name"`
	TemplateItemDesc    *string          `db:"template_item_description"`
	CreatedAt           time.Time        `db:"created_at"`
}

// ListResults returns all findings for a check in inspection order.
func (r *Repository) ListResults(ctx context.Context, checkID, orgID uuid.UUID) ([]CheckResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cr.id, cr.health_check_id, cr.template_item_id, cr.rag_status,
			cr.value, cr.notes, cr.is_mot_failure,
			ti.name, ti.description, cr.created_at
		 FROM check_results cr
		 JOIN health_checks hc ON hc.id = cr.health_check_id
		 LEFT JOIN template_items ti ON ti.id = cr.template_item_id
		 WHERE cr.health_check_id = $1 AND hc.organization_id = $2
		 ORDER BY cr.created_at ASC, cr.id ASC`,
		checkID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query check results: %w", err)
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		var cr CheckResult
		if err := rows.Scan(&cr.ID, &cr.HealthCheckID, &cr.TemplateItemID, &cr.RAGStatus,
			&cr.Value, &cr.Notes, &cr.IsMOTFailure,
			&cr.TemplateItemName, &cr.TemplateItemDesc, &cr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate check results: %w", err)
	}
	return results, nil
}
