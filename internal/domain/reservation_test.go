package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestReservation(t *testing.T) *StockReservation {
	t.Helper()
	r, err := NewStockReservation(uuid.New(), "Test Product", uuid.New(), 5, "corr-1")
	assert.NoError(t, err)
	return r
}

func TestNewStockReservation(t *testing.T) {
	r := newTestReservation(t)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, ReservationActive, r.Status)
	assert.Equal(t, 5, r.Quantity)
	assert.Equal(t, "corr-1", r.CorrelationID)
	assert.False(t, r.ReservedAt.IsZero())
	assert.True(t, r.IsActive())
}

func TestNewStockReservation_Error_NonPositiveQuantity(t *testing.T) {
	_, err := NewStockReservation(uuid.New(), "Test Product", uuid.New(), 0, "")

	assert.Error(t, err)
	assert.Equal(t, ErrInvalidQuantity, err)
}

func TestStockReservation_Complete(t *testing.T) {
	r := newTestReservation(t)

	assert.NoError(t, r.Complete())
	assert.Equal(t, ReservationCompleted, r.Status)
	assert.False(t, r.IsActive())
}

func TestStockReservation_Cancel(t *testing.T) {
	r := newTestReservation(t)

	assert.NoError(t, r.Cancel())
	assert.Equal(t, ReservationCancelled, r.Status)
}

func TestStockReservation_Expire(t *testing.T) {
	r := newTestReservation(t)

	assert.NoError(t, r.Expire())
	assert.Equal(t, ReservationExpired, r.Status)
}

func TestStockReservation_NoTransitionOutOfTerminalState(t *testing.T) {
	terminalSetups := []func(r *StockReservation) error{
		func(r *StockReservation) error { return r.Complete() },
		func(r *StockReservation) error { return r.Cancel() },
		func(r *StockReservation) error { return r.Expire() },
	}

	for _, setup := range terminalSetups {
		r := newTestReservation(t)
		assert.NoError(t, setup(r))
		terminal := r.Status

		assert.Equal(t, ErrInvalidTransition, r.Complete())
		assert.Equal(t, ErrInvalidTransition, r.Cancel())
		assert.Equal(t, ErrInvalidTransition, r.Expire())
		assert.Equal(t, terminal, r.Status)
	}
}
