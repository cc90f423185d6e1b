package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ProcStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches by concrete type, so fan out through a
	// type switch rather than the interface.
	switch e := ev.(type) {
	case ProcStartedEvent:
		event.Publish(b.dispatcher, e)
	case ProcExitedEvent:
		event.Publish(b.dispatcher, e)
	case ProcStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case ProcLineEvent:
		event.Publish(b.dispatcher, e)
	case ProcsReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler function; the handler's parameter type
// selects which events it receives. Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ProcLineEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ProcStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcLineEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcsReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
