package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Publishing on a nil bus is a no-op so callers can leave events unwired.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ExecutorStartedEvent:
		event.Publish(b.dispatcher, e)
	case ExecutorOutputEvent:
		event.Publish(b.dispatcher, e)
	case ExecutorFinishedEvent:
		event.Publish(b.dispatcher, e)
	case BatchStartedEvent:
		event.Publish(b.dispatcher, e)
	case BatchFinishedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ExecutorFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ExecutorStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecutorOutputEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecutorFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BatchStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BatchFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Unknown handler type
		return func() {}
	}
}
