// Package eventbus decouples the control cycle from its observers: the engine
// publishes cycle and measurement events, and metrics or telemetry consumers
// subscribe without ever blocking a dispatch.
package eventbus

// Event represents an arbitrary event passed on the bus.
type Event any

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation. Cycle events of all types share
// one bus; consumers interested in a single type use SubscribeTo.
type Bus struct {
	fanout[Event]
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }
