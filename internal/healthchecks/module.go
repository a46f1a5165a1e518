// Package healthchecks provides the vehicle health-check domain module.
package healthchecks

import (
	"workshop_portal_backend/internal/healthchecks/handler"
	"workshop_portal_backend/internal/healthchecks/repository"
	"workshop_portal_backend/internal/healthchecks/service"
	apphttp "workshop_portal_backend/internal/http"
	"workshop_portal_backend/platform/config"
	"workshop_portal_backend/platform/events"
	"workshop_portal_backend/platform/logger"
	"workshop_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the health-check domain module.
type Module struct {
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
	service       *service.Service
}

// NewModule creates the health-check module with all dependencies wired.
// staff resolves technician ids within the tenant; nil skips the check.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger, staff service.TechnicianReader, cfg config.PublicLinkConfig) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, staff, eventBus, log, cfg.GetPublicBaseURL(), cfg.GetDefaultLinkTTLDays())

	return &Module{
		handler:       handler.New(svc, val),
		publicHandler: handler.NewPublicHandler(svc, val),
		service:       svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "healthchecks"
}

// Service returns the service layer for external use (scheduler tasks).
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	checks := ctx.Protected.Group("/health-checks")
	m.handler.RegisterRoutes(checks)

	// Public customer report routes carry no auth; the token is the
	// credential. Rate limited harder than the staff surface.
	public := ctx.V1.Group("/public/checks")
	if ctx.PublicRateLimiter != nil {
		public.Use(ctx.PublicRateLimiter.RateLimit())
	}
	m.publicHandler.RegisterRoutes(public)
}

var _ apphttp.Module = (*Module)(nil)
