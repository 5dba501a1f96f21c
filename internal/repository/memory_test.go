package repository

import (
	"context"
	"errors"
	"testing"

	"stocksaga/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProducts_Save_VersionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := domain.NewProduct("SKU-001", "Product", "", 10, 100, 5, "tester")
	require.NoError(t, err)
	require.NoError(t, store.Products().Save(ctx, p))
	assert.Equal(t, 1, p.Version)

	// Two readers load the same version.
	first, err := store.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := store.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, first.Reserve(10, "a"))
	require.NoError(t, store.Products().Save(ctx, first))

	// The stale writer must not silently overwrite.
	require.NoError(t, second.Reserve(10, "b"))
	err = store.Products().Save(ctx, second)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	current, err := store.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, current.Available.Value())
}

func TestMemoryProducts_Save_DuplicateSKU(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := domain.NewProduct("SKU-001", "A", "", 1, 1, 0, "tester")
	require.NoError(t, err)
	require.NoError(t, store.Products().Save(ctx, a))

	b, err := domain.NewProduct("SKU-001", "B", "", 1, 1, 0, "tester")
	require.NoError(t, err)
	err = store.Products().Save(ctx, b)
	assert.True(t, errors.Is(err, ErrDuplicateSKU))
}

func TestMemoryProcessedEvents_Record_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ev := domain.NewProcessedEvent("evt-1", "OrderConfirmed", "order-1", "corr-1")
	require.NoError(t, store.ProcessedEvents().Record(ctx, ev))

	again := domain.NewProcessedEvent("evt-1", "OrderConfirmed", "order-1", "corr-1")
	err := store.ProcessedEvents().Record(ctx, again)
	assert.True(t, errors.Is(err, ErrDuplicateEvent))

	seen, err := store.ProcessedEvents().WasProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_InTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := domain.NewProduct("SKU-001", "Product", "", 10, 100, 5, "tester")
	require.NoError(t, err)
	require.NoError(t, store.Products().Save(ctx, p))

	boom := errors.New("boom")
	err = store.InTx(ctx, func(tx Store) error {
		loaded, err := tx.Products().FindByID(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Reserve(40, "tx"))
		require.NoError(t, tx.Products().Save(ctx, loaded))

		if err := tx.ProcessedEvents().Record(ctx, domain.NewProcessedEvent("evt-9", "OrderConfirmed", "", "")); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	// Neither the stock mutation nor the ledger insert survived.
	current, err := store.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, current.Available.Value())

	seen, err := store.ProcessedEvents().WasProcessed(ctx, "evt-9")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryReservations_FindActiveByOrderAndProduct(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	orderID := uuid.New()
	productID := uuid.New()
	res, err := domain.NewStockReservation(productID, "Product", orderID, 3, "corr")
	require.NoError(t, err)
	require.NoError(t, store.Reservations().Save(ctx, res))

	found, err := store.Reservations().FindActiveByOrderAndProduct(ctx, orderID, productID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, found.ID)

	require.NoError(t, found.Cancel())
	require.NoError(t, store.Reservations().Save(ctx, found))

	_, err = store.Reservations().FindActiveByOrderAndProduct(ctx, orderID, productID)
	assert.Equal(t, domain.ErrReservationNotFound, err)
}
