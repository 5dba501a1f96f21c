package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a stock reservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

// reservationTransitions is the single allowed-transitions table for the
// reservation state machine. Terminal states have no outgoing transitions.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationActive: {ReservationCompleted, ReservationCancelled, ReservationExpired},
}

// CanTransitionTo reports whether the transition is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// StockReservation records a pending claim of N units of a product for an
// order. At most one reservation should exist per (order, product) pair.
type StockReservation struct {
	ID            uuid.UUID
	ProductID     uuid.UUID
	ProductName   string
	OrderID       uuid.UUID
	Quantity      int
	Status        ReservationStatus
	CorrelationID string
	ReservedAt    time.Time
	UpdatedAt     time.Time
}

// NewStockReservation creates an Active reservation.
func NewStockReservation(productID uuid.UUID, productName string, orderID uuid.UUID, quantity int, correlationID string) (*StockReservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	now := time.Now().UTC()
	return &StockReservation{
		ID:            uuid.New(),
		ProductID:     productID,
		ProductName:   productName,
		OrderID:       orderID,
		Quantity:      quantity,
		Status:        ReservationActive,
		CorrelationID: correlationID,
		ReservedAt:    now,
		UpdatedAt:     now,
	}, nil
}

// Complete marks the reservation as consumed by an allocation.
func (r *StockReservation) Complete() error {
	return r.transition(ReservationCompleted)
}

// Cancel marks the reservation as released back to stock.
func (r *StockReservation) Cancel() error {
	return r.transition(ReservationCancelled)
}

// Expire marks the reservation as swept by the time-based expiry process.
func (r *StockReservation) Expire() error {
	return r.transition(ReservationExpired)
}

// IsActive reports whether the reservation still holds stock.
func (r *StockReservation) IsActive() bool {
	return r.Status == ReservationActive
}

func (r *StockReservation) transition(target ReservationStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	r.Status = target
	r.UpdatedAt = time.Now().UTC()
	return nil
}
