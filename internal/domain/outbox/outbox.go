package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Keyed events expose the id of the aggregate they belong to, used as the
// partition key by durable sinks.
type Keyed interface {
	AggregateID() string
}

// Identified events carry a unique id, logged as event_id.
type Identified interface {
	ID() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
