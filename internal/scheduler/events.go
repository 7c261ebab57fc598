package scheduler

// Event represents a scheduler lifecycle event.
// Name plus the runner URL it concerns (empty for pool-wide events) and
// optional fields.
type Event struct {
	Name   string
	Runner string
	Fields map[string]any
}

// EventPublisher receives events from the scheduler. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
