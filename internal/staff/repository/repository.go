// Package repository provides database access for staff members.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is one staff member within an organization.
type User struct {
	ID             uuid.UUID  `db:"id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	SiteID         *uuid.UUID `db:"site_id"`
	Email          string     `db:"email"`
	FirstName      string     `db:"first_name"`
	LastName       string     `db:"last_name"`
	Role           string     `db:"role"`
	IsActive       bool       `db:"is_active"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// Repository provides database operations for staff members.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new staff repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, organization_id, site_id, email, first_name, last_name, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.SiteID, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("staff member not found")
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// GetByID retrieves a staff member scoped to the organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND organization_id = $2`
	return scanUser(r.pool.QueryRow(ctx, query, id, orgID))
}

// List retrieves active staff members, optionally filtered by role.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, role *string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE organization_id = $1
			AND is_active
			AND ($2::text IS NULL OR role = $2)
		ORDER BY last_name ASC, first_name ASC`

	var roleParam any
	if role != nil {
		roleParam = *role
	}
	rows, err := r.pool.Query(ctx, query, orgID, roleParam)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate staff: %w", err)
	}
	return users, nil
}

// ExistsWithRole reports whether an active staff member with the given role
// exists within the organization.
func (r *Repository) ExistsWithRole(ctx context.Context, id, orgID uuid.UUID, role string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1 AND organization_id = $2 AND role = $3 AND is_active
		)`,
		id, orgID, role,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check staff member: %w", err)
	}
	return exists, nil
}
