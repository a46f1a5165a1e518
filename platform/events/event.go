// Package events is the in-process publish/subscribe fabric the feature
// modules communicate over. It knows nothing about health checks; concrete
// event types live in internal/events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is implemented by every message that crosses the bus.
type Event interface {
	// EventName identifies the event type; subscriptions match on it.
	EventName() string
	// OccurredAt is when the event was raised.
	OccurredAt() time.Time
}

// BaseEvent carries the identity and timestamp shared by every event.
// Embed it and implement EventName on the concrete type.
type BaseEvent struct {
	EventID   uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt is when the event was raised.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a fresh event id and the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{EventID: uuid.New(), Timestamp: time.Now()}
}

// Handler consumes events of one registered name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish fans the event out asynchronously. Handler errors are
	// logged, never returned.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler before returning and reports the
	// first failure.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the given event name, as
	// returned by Event.EventName.
	Subscribe(eventName string, handler Handler)
}
