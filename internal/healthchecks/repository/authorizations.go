package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Decision is a customer's answer to a repair item.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDeclined Decision = "declined"
)

// Authorization is one customer decision against a repair item.
type Authorization struct {
	ID           uuid.UUID `db:"id"`
	RepairItemID uuid.UUID `db:"repair_item_id"`
	Decision     Decision  `db:"decision"`
	HasSignature bool      `db:"has_signature"`
	Notes        *string   `db:"notes"`
	DecidedAt    time.Time `db:"decided_at"`
}

// UpsertAuthorization records a customer decision, replacing any previous
// decision for the same repair item.
func (r *Repository) UpsertAuthorization(ctx context.Context, auth Authorization) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO authorizations (id, repair_item_id, decision, has_signature, notes, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (repair_item_id) DO UPDATE SET
			decision = EXCLUDED.decision,
			has_signature = EXCLUDED.has_signature,
			notes = EXCLUDED.notes,
			decided_at = EXCLUDED.decided_at`,
		auth.ID, auth.RepairItemID, string(auth.Decision), auth.HasSignature, auth.Notes, auth.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert authorization: %w", err)
	}
	return nil
}

// ListAuthorizations returns all customer decisions for a check's items.
func (r *Repository) ListAuthorizations(ctx context.Context, checkID, orgID uuid.UUID) ([]Authorization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.repair_item_id, a.decision, a.has_signature, a.notes, a.decided_at
		 FROM authorizations a
		 JOIN repair_items ri ON ri.id = a.repair_item_id
		 WHERE ri.health_check_id = $1 AND ri.organization_id = $2
		 ORDER BY a.decided_at ASC`,
		checkID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query authorizations: %w", err)
	}
	defer rows.Close()

	var auths []Authorization
	for rows.Next() {
		var a Authorization
		if err := rows.Scan(&a.ID, &a.RepairItemID, &a.Decision, &a.HasSignature, &a.Notes, &a.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan authorization: %w", err)
		}
		auths = append(auths, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate authorizations: %w", err)
	}
	return auths, nil
}
