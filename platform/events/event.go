// Package events is the in-process bus the CRM modules use to react to each
// other (notifications, metrics) without importing one another.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName doubles as the
// subscription key, so it must be stable.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent is embedded by every CRM event for its timestamp.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps the event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to the handlers subscribed under their name.
// Publish never reports handler failures to the caller; PublishSync does.
type Bus interface {
	Publish(ctx context.Context, event Event)
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
