// Package events carries the gateway's in-process domain events: board
// updates, call-outs, count increases and auto-cancellations flow over this
// bus from the poll loops to the notification layer without either side
// importing the other.
package events

import (
	"context"
	"time"
)

// Event names identify subscriptions; every domain event embeds BaseEvent
// for its timestamp.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent stamps an event with the moment it was raised.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one named type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes domain events to subscribed handlers. Publish dispatches
// asynchronously; PublishSync waits for every handler, which the tests and
// shutdown paths rely on. Subscribe keys on Event.EventName().
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
