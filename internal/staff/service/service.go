// Package service provides staff directory lookups for other modules and
// the staff listing endpoints.
package service

import (
	"context"

	"workshop_portal_backend/internal/healthchecks/domain"
	"workshop_portal_backend/internal/staff/repository"
	"workshop_portal_backend/internal/staff/transport"
	"workshop_portal_backend/platform/apperr"

	"github.com/google/uuid"
)

// Service provides staff directory operations.
type Service struct {
	repo *repository.Repository
}

// New creates a new staff service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// TechnicianExists reports whether an active technician with the given id
// belongs to the organization. This is the port the health-check
// orchestrator uses before assigning work.
func (s *Service) TechnicianExists(ctx context.Context, technicianID, orgID uuid.UUID) (bool, error) {
	return s.repo.ExistsWithRole(ctx, technicianID, orgID, string(domain.RoleTechnician))
}

// List returns active staff, optionally filtered by role.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, role string) (*transport.StaffListResponse, error) {
	var roleFilter *string
	if role != "" {
		if !domain.IsValidRole(domain.Role(role)) {
			return nil, apperr.Validation("unknown role filter")
		}
		roleFilter = &role
	}

	users, err := s.repo.List(ctx, orgID, roleFilter)
	if err != nil {
		return nil, err
	}

	items := make([]transport.StaffMemberResponse, len(users))
	for i, u := range users {
		items[i] = transport.StaffMemberResponse{
			ID:        u.ID,
			SiteID:    u.SiteID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		}
	}
	return &transport.StaffListResponse{Items: items}, nil
}

// ListTechnicians returns the organization's active technicians.
func (s *Service) ListTechnicians(ctx context.Context, orgID uuid.UUID) (*transport.StaffListResponse, error) {
	return s.List(ctx, orgID, string(domain.RoleTechnician))
}
