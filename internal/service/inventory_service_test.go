package service

import (
	"context"
	"testing"
	"time"

	"stocksaga/internal/domain"
	"stocksaga/internal/events"
	"stocksaga/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInventoryFixture(t *testing.T) (*InventoryService, *repository.MemoryStore, *events.InMemoryPublisher) {
	t.Helper()
	store := repository.NewMemoryStore()
	publisher := events.NewInMemoryPublisher(nil)
	svc := NewInventoryService(store, publisher, zap.NewNop(), 3, 30*time.Minute)
	return svc, store, publisher
}

func createProduct(t *testing.T, svc *InventoryService, quantity, minimum int) *domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), "SKU-"+uuid.NewString()[:8], "Widget", "A widget", 9.99, quantity, minimum, "tester")
	require.NoError(t, err)
	return product
}

func TestInventoryService_CreateProduct(t *testing.T) {
	svc, store, _ := newInventoryFixture(t)

	product := createProduct(t, svc, 100, 10)
	assert.Equal(t, 100, product.Available.Value())
	assert.Equal(t, 1, product.Version)

	saved, err := store.Products().FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, product.SKU, saved.SKU)
}

func TestInventoryService_CreateProduct_Error_DuplicateSKU(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, "SKU-1", "Widget", "", 1.0, 10, 2, "tester")
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, "SKU-1", "Other", "", 1.0, 10, 2, "tester")
	assert.ErrorIs(t, err, repository.ErrDuplicateSKU)
}

func TestInventoryService_ReserveStock_Success(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	orderID := uuid.New()

	outcome, err := svc.ReserveStock(ctx, orderID, product.ID, 4, "cust-1", "corr-1")
	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Equal(t, 6, outcome.Remaining)
	require.NotNil(t, outcome.Reservation)
	assert.True(t, outcome.Reservation.IsActive())

	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, saved.Available.Value())

	published := publisher.EventsOfType("StockReserved")
	require.Len(t, published, 1)
	event := published[0].(events.StockReserved)
	assert.Equal(t, 6, event.Remaining)
}

func TestInventoryService_ReserveStock_InsufficientIsRejectionNotError(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 3, 1)

	outcome, err := svc.ReserveStock(ctx, uuid.New(), product.ID, 5, "cust-1", "")
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Message)

	// Nothing moved and nothing was announced.
	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Available.Value())
	assert.Empty(t, publisher.EventsOfType("StockReserved"))
}

func TestInventoryService_ReserveStock_Error_ProductNotFound(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)

	_, err := svc.ReserveStock(context.Background(), uuid.New(), uuid.New(), 1, "cust-1", "")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestInventoryService_AllocateStock_ConsumesReservation(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	orderID := uuid.New()

	outcome, err := svc.ReserveStock(ctx, orderID, product.ID, 4, "cust-1", "")
	require.NoError(t, err)
	require.True(t, outcome.Success)

	allocated, err := svc.AllocateStock(ctx, orderID, product.ID, 4, "cust-1", "")
	require.NoError(t, err)

	// The reservation already moved the stock; allocation must not decrement
	// a second time.
	assert.Equal(t, 6, allocated.Available.Value())

	reservations, err := store.Reservations().FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationCompleted, reservations[0].Status)

	published := publisher.EventsOfType("StockAllocated")
	require.Len(t, published, 1)
}

func TestInventoryService_AllocateStock_WithoutReservation_Decrements(t *testing.T) {
	svc, store, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)

	_, err := svc.AllocateStock(ctx, uuid.New(), product.ID, 3, "cust-1", "")
	require.NoError(t, err)

	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, saved.Available.Value())
}

func TestInventoryService_AllocateStock_EmitsLowStockAlert(t *testing.T) {
	svc, _, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 8)

	_, err := svc.AllocateStock(ctx, uuid.New(), product.ID, 6, "cust-1", "corr-low")
	require.NoError(t, err)

	allocs := publisher.EventsOfType("StockAllocated")
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].(events.StockAllocated).LowStockTriggered)

	alerts := publisher.EventsOfType("LowStockAlert")
	require.Len(t, alerts, 1)
	alert := alerts[0].(events.LowStockAlert)
	assert.Equal(t, 4, alert.Current)
	assert.Equal(t, 8, alert.Minimum)
	assert.Equal(t, events.SeverityHigh, alert.Severity)
}

func TestInventoryService_ReleaseStock_CancelsActiveReservation(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	orderID := uuid.New()

	_, err := svc.ReserveStock(ctx, orderID, product.ID, 4, "cust-1", "")
	require.NoError(t, err)

	released, err := svc.ReleaseStock(ctx, orderID, product.ID, 4, "order cancelled", "cust-1", "", false)
	require.NoError(t, err)
	assert.Equal(t, 10, released.Available.Value())

	reservations, err := store.Reservations().FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationCancelled, reservations[0].Status)

	require.Len(t, publisher.EventsOfType("StockReleased"), 1)
}

func TestInventoryService_ReleaseStock_AfterAllocation(t *testing.T) {
	svc, store, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	orderID := uuid.New()

	_, err := svc.AllocateStock(ctx, orderID, product.ID, 3, "cust-1", "")
	require.NoError(t, err)

	_, err = svc.ReleaseStock(ctx, orderID, product.ID, 3, "compensation", "cust-1", "", true)
	require.NoError(t, err)

	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, saved.Available.Value())
}

func TestInventoryService_ReleaseStock_NothingClaimed_IsNoOp(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)

	_, err := svc.ReleaseStock(ctx, uuid.New(), product.ID, 3, "never reserved", "cust-1", "", false)
	require.NoError(t, err)

	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, saved.Available.Value())
	assert.Empty(t, publisher.EventsOfType("StockReleased"))
}

func TestInventoryService_AdjustStock(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)

	adjusted, err := svc.AdjustStock(ctx, product.ID, 5, "cycle count", "bob")
	require.NoError(t, err)
	assert.Equal(t, 15, adjusted.Available.Value())

	adjusted, err = svc.AdjustStock(ctx, product.ID, -12, "damaged goods", "bob")
	require.NoError(t, err)
	assert.Equal(t, 3, adjusted.Available.Value())
}

func TestInventoryService_AdjustStock_Error_WouldGoNegative(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 5, 2)

	_, err := svc.AdjustStock(ctx, product.ID, -8, "oops", "bob")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestInventoryService_ValidateStockAvailability(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	plenty := createProduct(t, svc, 100, 10)
	scarce := createProduct(t, svc, 2, 1)

	report, err := svc.ValidateStockAvailability(ctx, []StockRequest{
		{ProductID: plenty.ID, Quantity: 50},
		{ProductID: scarce.ID, Quantity: 5},
	})
	require.NoError(t, err)

	assert.False(t, report.AllAvailable)
	require.Len(t, report.Lines, 2)
	assert.True(t, report.Lines[0].Sufficient)
	assert.False(t, report.Lines[1].Sufficient)
	assert.Equal(t, 2, report.Lines[1].Available)
}

func TestInventoryService_ValidateStockAvailability_InactiveIsInsufficient(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 100, 10)
	_, err := svc.DeactivateProduct(ctx, product.ID, "admin")
	require.NoError(t, err)

	report, err := svc.ValidateStockAvailability(ctx, []StockRequest{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, report.AllAvailable)
}

func TestInventoryService_GetReplenishmentRecommendations_RankedBySeverity(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	// available 5, minimum 5: low band
	low := createProduct(t, svc, 5, 5)
	// available 0: critical
	critical := createProduct(t, svc, 0, 5)
	// available 2, minimum 5: high band
	high := createProduct(t, svc, 2, 5)

	recs, err := svc.GetReplenishmentRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, critical.ID, recs[0].ProductID)
	assert.Equal(t, events.SeverityCritical, recs[0].Severity)
	assert.Equal(t, 10, recs[0].Suggested)

	assert.Equal(t, high.ID, recs[1].ProductID)
	assert.Equal(t, events.SeverityHigh, recs[1].Severity)
	assert.Equal(t, 8, recs[1].Suggested)

	assert.Equal(t, low.ID, recs[2].ProductID)
}

func TestInventoryService_ExpireStaleReservations(t *testing.T) {
	svc, store, publisher := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	orderID := uuid.New()

	outcome, err := svc.ReserveStock(ctx, orderID, product.ID, 4, "cust-1", "")
	require.NoError(t, err)
	require.True(t, outcome.Success)

	// Backdate the reservation past the TTL.
	stale := outcome.Reservation
	stale.ReservedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Reservations().Save(ctx, stale))

	expired, err := svc.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	saved, err := store.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, saved.Available.Value())

	reservations, err := store.Reservations().FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationExpired, reservations[0].Status)

	released := publisher.EventsOfType("StockReleased")
	require.Len(t, released, 1)
	assert.Equal(t, "reservation expired", released[0].(events.StockReleased).Reason)
}

func TestInventoryService_ExpireStaleReservations_NoneStale(t *testing.T) {
	svc, _, _ := newInventoryFixture(t)
	ctx := context.Background()

	product := createProduct(t, svc, 10, 2)
	_, err := svc.ReserveStock(ctx, uuid.New(), product.ID, 4, "cust-1", "")
	require.NoError(t, err)

	expired, err := svc.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}
