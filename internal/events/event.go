// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"workshop_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Health-Check Domain Events
// =============================================================================

// HealthCheckStatusChanged is published after every successful status change.
type HealthCheckStatusChanged struct {
	BaseEvent
	CheckID    uuid.UUID `json:"checkId"`
	TenantID   uuid.UUID `json:"tenantId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ActorID    uuid.UUID `json:"actorId"`
}

func (e HealthCheckStatusChanged) EventName() string { return "healthchecks.status.changed" }

// TechnicianClockedIn is published when a technician opens a work session.
type TechnicianClockedIn struct {
	BaseEvent
	CheckID      uuid.UUID  `json:"checkId"`
	TenantID     uuid.UUID  `json:"tenantId"`
	TechnicianID uuid.UUID  `json:"technicianId"`
	RecoveredID  *uuid.UUID `json:"recoveredEntryId,omitempty"`
}

func (e TechnicianClockedIn) EventName() string { return "healthchecks.technician.clocked_in" }

// TechnicianClockedOut is published when a technician closes a work session.
type TechnicianClockedOut struct {
	BaseEvent
	CheckID         uuid.UUID `json:"checkId"`
	TenantID        uuid.UUID `json:"tenantId"`
	TechnicianID    uuid.UUID `json:"technicianId"`
	DurationMinutes int       `json:"durationMinutes"`
	Completed       bool      `json:"completed"`
}

func (e TechnicianClockedOut) EventName() string { return "healthchecks.technician.clocked_out" }

// HealthCheckPublished is published when a customer report link is issued.
// The notification module turns this into an outbox row and reminder tasks.
type HealthCheckPublished struct {
	BaseEvent
	CheckID    uuid.UUID `json:"checkId"`
	TenantID   uuid.UUID `json:"tenantId"`
	CustomerID uuid.UUID `json:"customerId"`
	PublicURL  string    `json:"publicUrl"`
	Channels   []string  `json:"channels"`
	Message    string    `json:"message,omitempty"`
	SentAt     time.Time `json:"sentAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func (e HealthCheckPublished) EventName() string { return "healthchecks.published" }

// HealthCheckClosed is published when a check reaches "completed" via close.
type HealthCheckClosed struct {
	BaseEvent
	CheckID  uuid.UUID `json:"checkId"`
	TenantID uuid.UUID `json:"tenantId"`
	ClosedBy uuid.UUID `json:"closedBy"`
}

func (e HealthCheckClosed) EventName() string { return "healthchecks.closed" }

// CustomerResponded is published when a customer records an authorization
// decision through the public portal.
type CustomerResponded struct {
	BaseEvent
	CheckID      uuid.UUID `json:"checkId"`
	TenantID     uuid.UUID `json:"tenantId"`
	RepairItemID uuid.UUID `json:"repairItemId"`
	Decision     string    `json:"decision"`
}

func (e CustomerResponded) EventName() string { return "healthchecks.customer.responded" }

// =============================================================================
// Scheduler Events
// =============================================================================

// HealthCheckReminderDue is published by the scheduler worker when a
// customer-response reminder falls due for a published check.
type HealthCheckReminderDue struct {
	BaseEvent
	CheckID  uuid.UUID `json:"checkId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e HealthCheckReminderDue) EventName() string { return "healthchecks.reminder.due" }

// NotificationOutboxDue is published by the scheduler worker when an outbox
// row's run_at has passed and the delivery handler should process it.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
