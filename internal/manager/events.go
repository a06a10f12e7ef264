package manager

// Event represents a manager lifecycle event.
// Minimal and stable: name + runner name and optional fields via key/values.
type Event struct {
	Name   string
	Runner string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events through the manager's logger at debug level.
type LogPublisher struct{ m *Manager }

// NewLogPublisher returns a publisher that logs events with m's logger.
func NewLogPublisher(m *Manager) LogPublisher { return LogPublisher{m: m} }

func (p LogPublisher) Publish(e Event) {
	ev := p.m.log.Debug().Str("event", e.Name).Str("runner", e.Runner)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("runner lifecycle")
}
