package events

import "github.com/kelindar/event"

// Subscription attaches one event type to a channel.
type Subscription func(bus *Bus, ch chan<- any) func()

// Of returns the subscription for events of type T.
func Of[T Event]() Subscription {
	return func(bus *Bus, ch chan<- any) func() {
		return event.Subscribe(bus.dispatcher, func(e T) {
			select {
			case ch <- e:
			default:
				bus.dropped.Add(1)
			}
		})
	}
}

// Forward delivers every listed event type to ch until the returned function
// is called. A full channel drops the event instead of blocking the publisher,
// which is usually an effect task or the UART listener.
func Forward(bus *Bus, ch chan<- any, subs ...Subscription) func() {
	unsubscribers := make([]func(), 0, len(subs))
	for _, sub := range subs {
		unsubscribers = append(unsubscribers, sub(bus, ch))
	}
	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}
