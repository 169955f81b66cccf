package events

import (
	"sync/atomic"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
	dropped    atomic.Uint64
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(EffectStateChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	// Type switch picks the generic Publish instantiation
	switch e := ev.(type) {
	case EffectStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case EffectForcedStopEvent:
		event.Publish(b.dispatcher, e)
	case RegisterDegradedEvent:
		event.Publish(b.dispatcher, e)
	case MotorRotationEvent:
		event.Publish(b.dispatcher, e)
	case InfraredReceivedEvent:
		event.Publish(b.dispatcher, e)
	case ListenerStoppedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Dropped reports how many events Forward discarded because a channel was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e InfraredReceivedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EffectStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EffectForcedStopEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RegisterDegradedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MotorRotationEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(InfraredReceivedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ListenerStoppedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
