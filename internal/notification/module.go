// Package notification turns health-check domain events into durable outbox
// rows and real-time SSE pushes. Provider delivery (email, SMS, WhatsApp) is
// behind the Deliverer port; without one configured the outbox row itself is
// the integration boundary.
package notification

import (
	"context"
	"fmt"
	"time"

	"workshop_portal_backend/internal/events"
	apphttp "workshop_portal_backend/internal/http"
	"workshop_portal_backend/internal/notification/outbox"
	"workshop_portal_backend/internal/notification/sse"
	"workshop_portal_backend/internal/scheduler"
	"workshop_portal_backend/platform/config"
	"workshop_portal_backend/platform/httpkit"
	"workshop_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox templates written by this module.
const (
	templateReport   = "health_check_report"
	templateReminder = "health_check_reminder"
)

// maxDeliveryAttempts bounds retries before a row is parked as failed.
const maxDeliveryAttempts = 5

// OutboxStore is the outbox surface the module writes to.
// *outbox.Repository implements it against Postgres.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
}

var _ OutboxStore = (*outbox.Repository)(nil)

// Deliverer hands a due outbox row to a concrete provider.
type Deliverer interface {
	Deliver(ctx context.Context, rec outbox.Record) error
}

// ReportPayload is the outbox payload for a published customer report.
type ReportPayload struct {
	CheckID    uuid.UUID `json:"checkId"`
	CustomerID uuid.UUID `json:"customerId"`
	PublicURL  string    `json:"publicUrl"`
	Channel    string    `json:"channel"`
	Message    string    `json:"message,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ReminderPayload is the outbox payload for a customer-response reminder.
type ReminderPayload struct {
	CheckID uuid.UUID `json:"checkId"`
}

// Module subscribes to domain events and owns the SSE stream endpoint.
type Module struct {
	outbox    OutboxStore
	sse       *sse.Service
	reminders scheduler.ReminderScheduler
	deliverer Deliverer
	offsets   []time.Duration
	log       *logger.Logger
}

func New(pool *pgxpool.Pool, cfg config.SchedulerConfig, log *logger.Logger) *Module {
	return &Module{
		outbox:  outbox.New(pool),
		sse:     sse.New(),
		offsets: cfg.GetReminderOffsets(),
		log:     log,
	}
}

func (m *Module) Name() string { return "notification" }

// SSE exposes the stream service so the composition root can share it.
func (m *Module) SSE() *sse.Service { return m.sse }

// SetReminderScheduler wires the asynq client. Reminders are disabled when
// no scheduler is configured.
func (m *Module) SetReminderScheduler(s scheduler.ReminderScheduler) { m.reminders = s }

// SetDeliverer wires a concrete notification provider.
func (m *Module) SetDeliverer(d Deliverer) { m.deliverer = d }

// RegisterRoutes mounts the SSE stream for authenticated staff.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", m.sse.Handler(
		func(c *gin.Context) (uuid.UUID, bool) {
			id := httpkit.GetIdentity(c)
			return id.UserID(), id.IsAuthenticated()
		},
		func(c *gin.Context) (uuid.UUID, bool) {
			id := httpkit.GetIdentity(c)
			return id.OrganizationID(), id.IsAuthenticated()
		},
	))
}

var _ apphttp.Module = (*Module)(nil)

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.HealthCheckPublished{}.EventName(), m)
	bus.Subscribe(events.HealthCheckReminderDue{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)
	bus.Subscribe(events.HealthCheckStatusChanged{}.EventName(), m)
	bus.Subscribe(events.TechnicianClockedIn{}.EventName(), m)
	bus.Subscribe(events.TechnicianClockedOut{}.EventName(), m)
	bus.Subscribe(events.CustomerResponded{}.EventName(), m)
}

// Handle dispatches a domain event to its handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.HealthCheckPublished:
		return m.handleReportPublished(ctx, e)
	case events.HealthCheckReminderDue:
		return m.handleReminderDue(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleOutboxDue(ctx, e)
	case events.HealthCheckStatusChanged:
		m.sse.PublishCheckEvent(e.TenantID, sse.EventCheckStatusChanged, e.CheckID, map[string]string{
			"from": e.FromStatus,
			"to":   e.ToStatus,
		})
		return nil
	case events.TechnicianClockedIn:
		m.sse.PublishCheckEvent(e.TenantID, sse.EventTechnicianClockIn, e.CheckID, map[string]any{
			"technicianId": e.TechnicianID,
		})
		return nil
	case events.TechnicianClockedOut:
		m.sse.PublishCheckEvent(e.TenantID, sse.EventTechnicianClockOut, e.CheckID, map[string]any{
			"technicianId":    e.TechnicianID,
			"durationMinutes": e.DurationMinutes,
			"completed":       e.Completed,
		})
		return nil
	case events.CustomerResponded:
		m.sse.PublishCheckEvent(e.TenantID, sse.EventCustomerResponded, e.CheckID, map[string]any{
			"repairItemId": e.RepairItemID,
			"decision":     e.Decision,
		})
		return nil
	}
	return nil
}

// handleReportPublished writes one outbox row per requested channel and
// schedules response reminders that fall before the link expires.
func (m *Module) handleReportPublished(ctx context.Context, e events.HealthCheckPublished) error {
	for _, channel := range e.Channels {
		_, err := m.outbox.Insert(ctx, outbox.InsertParams{
			TenantID: e.TenantID,
			Kind:     outbox.KindCustomerReport,
			Template: templateReport,
			Payload: ReportPayload{
				CheckID:    e.CheckID,
				CustomerID: e.CustomerID,
				PublicURL:  e.PublicURL,
				Channel:    channel,
				Message:    e.Message,
				ExpiresAt:  e.ExpiresAt,
			},
			RunAt: e.SentAt,
		})
		if err != nil {
			m.log.NotificationError("outbox insert", err)
			return err
		}
	}

	m.sse.PublishCheckEvent(e.TenantID, sse.EventReportPublished, e.CheckID, map[string]any{
		"channels":  e.Channels,
		"expiresAt": e.ExpiresAt,
	})

	if m.reminders == nil {
		return nil
	}
	for _, offset := range m.offsets {
		runAt := e.SentAt.Add(offset)
		if !runAt.Before(e.ExpiresAt) {
			continue
		}
		err := m.reminders.ScheduleHealthCheckReminder(ctx, scheduler.HealthCheckReminderPayload{
			CheckID:        e.CheckID.String(),
			OrganizationID: e.TenantID.String(),
		}, runAt)
		if err != nil {
			m.log.NotificationError("schedule reminder", err)
		}
	}
	return nil
}

func (m *Module) handleReminderDue(ctx context.Context, e events.HealthCheckReminderDue) error {
	_, err := m.outbox.Insert(ctx, outbox.InsertParams{
		TenantID: e.TenantID,
		Kind:     outbox.KindCustomerReminder,
		Template: templateReminder,
		Payload:  ReminderPayload{CheckID: e.CheckID},
	})
	if err != nil {
		m.log.NotificationError("outbox insert", err)
	}
	return err
}

// handleOutboxDue runs the delivery attempt for one claimed outbox row.
func (m *Module) handleOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	rec, err := m.outbox.GetByID(ctx, e.OutboxID)
	if err != nil {
		return err
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		return nil
	}

	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}
	rec.Attempts++

	if m.deliverer == nil {
		// No provider configured; the row is the handoff.
		m.log.Info("notification ready for delivery", "outboxId", rec.ID, "kind", rec.Kind, "template", rec.Template)
		return m.outbox.MarkSucceeded(ctx, rec.ID)
	}

	if err := m.deliverer.Deliver(ctx, rec); err != nil {
		m.log.NotificationError(rec.Kind, err)
		if rec.Attempts >= maxDeliveryAttempts {
			return m.outbox.MarkFailed(ctx, rec.ID, err.Error())
		}
		msg := fmt.Sprintf("attempt %d: %s", rec.Attempts, err.Error())
		return m.outbox.MarkPending(ctx, rec.ID, &msg)
	}

	return m.outbox.MarkSucceeded(ctx, rec.ID)
}
