package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is the idempotency ledger record for one consumed event.
// The uniqueness constraint on EventID is what turns at-least-once delivery
// into effectively-exactly-once business effects: the row is inserted in the
// same transaction as the stock mutation, and a duplicate insert means the
// event was already applied.
type ProcessedEvent struct {
	ID            uuid.UUID
	EventID       string
	EventType     string
	OrderID       string
	CorrelationID string
	ProcessedAt   time.Time
}

// NewProcessedEvent creates a ledger record for a consumed event.
func NewProcessedEvent(eventID, eventType, orderID, correlationID string) *ProcessedEvent {
	return &ProcessedEvent{
		ID:            uuid.New(),
		EventID:       eventID,
		EventType:     eventType,
		OrderID:       orderID,
		CorrelationID: correlationID,
		ProcessedAt:   time.Now().UTC(),
	}
}
