package repository

import (
	"context"
	"errors"
	"time"

	"stocksaga/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrVersionConflict signals an optimistic-concurrency failure: the row
	// changed since it was read. Callers must re-read and retry, never
	// overwrite.
	ErrVersionConflict = errors.New("version conflict - aggregate modified by another writer")

	// ErrDuplicateEvent signals that the processed-event ledger already
	// contains the source event id; the event is a redelivery.
	ErrDuplicateEvent = errors.New("event already processed")

	// ErrDuplicateSKU signals a uniqueness violation on product SKU.
	ErrDuplicateSKU = errors.New("sku already exists")
)

// ProductRepository handles persistence for Products. Save inserts new
// aggregates (Version 0) and performs a version-checked update otherwise,
// bumping Version on success.
type ProductRepository interface {
	Save(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	FindAll(ctx context.Context) ([]*domain.Product, error)
	FindBelowMinimum(ctx context.Context) ([]*domain.Product, error)
}

// OrderRepository handles persistence for Orders, with the same Save
// semantics as ProductRepository.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Order, error)
}

// ReservationRepository handles persistence for StockReservations.
type ReservationRepository interface {
	Save(ctx context.Context, reservation *domain.StockReservation) error
	FindActiveByOrderAndProduct(ctx context.Context, orderID, productID uuid.UUID) (*domain.StockReservation, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.StockReservation, error)
	FindActiveBefore(ctx context.Context, cutoff time.Time) ([]*domain.StockReservation, error)
}

// ProcessedEventRepository is the idempotency ledger. Record fails with
// ErrDuplicateEvent when the source event id was already recorded.
type ProcessedEventRepository interface {
	Record(ctx context.Context, event *domain.ProcessedEvent) error
	WasProcessed(ctx context.Context, eventID string) (bool, error)
}

// Store bundles the repositories behind one persistence boundary. InTx runs
// fn against transaction-scoped repositories; everything inside commits or
// rolls back together, which is what pairs the ledger insert with the stock
// mutation in the saga.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	Reservations() ReservationRepository
	ProcessedEvents() ProcessedEventRepository
	InTx(ctx context.Context, fn func(tx Store) error) error
}
