package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// InMemoryPublisher collects events instead of sending them to a broker.
// Used in tests and as a fallback when the broker is unavailable.
type InMemoryPublisher struct {
	logger *zap.Logger

	mu     sync.Mutex
	events []Event
}

// NewInMemoryPublisher creates an in-memory publisher.
func NewInMemoryPublisher(logger *zap.Logger) *InMemoryPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryPublisher{logger: logger}
}

func (p *InMemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.logger.Debug("Event published (in-memory)",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.Meta().EventID),
	)
	return nil
}

// Events returns a snapshot of the published events.
func (p *InMemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOfType returns published events matching the given type name.
func (p *InMemoryPublisher) EventsOfType(eventType string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}
