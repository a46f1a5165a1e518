// Package staff provides the staff directory module.
package staff

import (
	apphttp "workshop_portal_backend/internal/http"
	"workshop_portal_backend/internal/staff/handler"
	"workshop_portal_backend/internal/staff/repository"
	"workshop_portal_backend/internal/staff/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the staff directory module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the staff module.
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	svc := service.New(repo)
	return &Module{
		handler: handler.New(svc),
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "staff"
}

// Service returns the staff service, consumed as the technician directory by
// the health-check module.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	staff := ctx.Protected.Group("/staff")
	m.handler.RegisterRoutes(staff)
}

var _ apphttp.Module = (*Module)(nil)
