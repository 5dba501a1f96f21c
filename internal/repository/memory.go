package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"stocksaga/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and as a development
// fallback. InTx snapshots the data set and restores it when fn fails, so
// rollback semantics match the SQLite store.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	products     map[uuid.UUID]*domain.Product
	orders       map[uuid.UUID]*domain.Order
	reservations map[uuid.UUID]*domain.StockReservation
	processed    map[string]*domain.ProcessedEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func newMemoryData() *memoryData {
	return &memoryData{
		products:     make(map[uuid.UUID]*domain.Product),
		orders:       make(map[uuid.UUID]*domain.Order),
		reservations: make(map[uuid.UUID]*domain.StockReservation),
		processed:    make(map[string]*domain.ProcessedEvent),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.products {
		c.products[k] = cloneProduct(v)
	}
	for k, v := range d.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range d.reservations {
		c.reservations[k] = cloneReservation(v)
	}
	for k, v := range d.processed {
		ev := *v
		c.processed[k] = &ev
	}
	return c
}

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = make([]domain.OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

func cloneReservation(r *domain.StockReservation) *domain.StockReservation {
	c := *r
	return &c
}

func (s *MemoryStore) Products() ProductRepository {
	return &memoryProducts{store: s}
}

func (s *MemoryStore) Orders() OrderRepository {
	return &memoryOrders{store: s}
}

func (s *MemoryStore) Reservations() ReservationRepository {
	return &memoryReservations{store: s}
}

func (s *MemoryStore) ProcessedEvents() ProcessedEventRepository {
	return &memoryProcessedEvents{store: s}
}

// InTx runs fn under the store lock against a snapshot-protected view.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &memoryTx{data: s.data}
	if err := fn(tx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// memoryTx is the transaction-scoped view. The caller already holds the
// store lock; nested InTx calls run in the same transaction.
type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) Products() ProductRepository {
	return &memoryProducts{tx: t}
}

func (t *memoryTx) Orders() OrderRepository {
	return &memoryOrders{tx: t}
}

func (t *memoryTx) Reservations() ReservationRepository {
	return &memoryReservations{tx: t}
}

func (t *memoryTx) ProcessedEvents() ProcessedEventRepository {
	return &memoryProcessedEvents{tx: t}
}

func (t *memoryTx) InTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

// access resolves the backing data, locking only outside a transaction.
func access(store *MemoryStore, tx *memoryTx, fn func(d *memoryData) error) error {
	if tx != nil {
		return fn(tx.data)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	return fn(store.data)
}

type memoryProducts struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryProducts) Save(ctx context.Context, product *domain.Product) error {
	return access(r.store, r.tx, func(d *memoryData) error {
		if product.Version == 0 {
			for _, existing := range d.products {
				if existing.SKU == product.SKU {
					return ErrDuplicateSKU
				}
			}
			product.Version = 1
			d.products[product.ID] = cloneProduct(product)
			return nil
		}

		existing, ok := d.products[product.ID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if existing.Version != product.Version {
			return ErrVersionConflict
		}
		product.Version++
		d.products[product.ID] = cloneProduct(product)
		return nil
	})
}

func (r *memoryProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var out *domain.Product
	err := access(r.store, r.tx, func(d *memoryData) error {
		p, ok := d.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		out = cloneProduct(p)
		return nil
	})
	return out, err
}

func (r *memoryProducts) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var out *domain.Product
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, p := range d.products {
			if p.SKU == sku {
				out = cloneProduct(p)
				return nil
			}
		}
		return domain.ErrProductNotFound
	})
	return out, err
}

func (r *memoryProducts) FindAll(ctx context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, p := range d.products {
			out = append(out, cloneProduct(p))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
		return nil
	})
	return out, err
}

func (r *memoryProducts) FindBelowMinimum(ctx context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, p := range d.products {
			if p.Active && p.IsLowStock() {
				out = append(out, cloneProduct(p))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
		return nil
	})
	return out, err
}

type memoryOrders struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryOrders) Save(ctx context.Context, order *domain.Order) error {
	return access(r.store, r.tx, func(d *memoryData) error {
		if order.Version == 0 {
			order.Version = 1
			d.orders[order.ID] = cloneOrder(order)
			return nil
		}

		existing, ok := d.orders[order.ID]
		if !ok {
			return domain.ErrOrderNotFound
		}
		if existing.Version != order.Version {
			return ErrVersionConflict
		}
		order.Version++
		d.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *memoryOrders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var out *domain.Order
	err := access(r.store, r.tx, func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return domain.ErrOrderNotFound
		}
		out = cloneOrder(o)
		return nil
	})
	return out, err
}

func (r *memoryOrders) FindRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	var out []*domain.Order
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, o := range d.orders {
			out = append(out, cloneOrder(o))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

type memoryReservations struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryReservations) Save(ctx context.Context, reservation *domain.StockReservation) error {
	return access(r.store, r.tx, func(d *memoryData) error {
		d.reservations[reservation.ID] = cloneReservation(reservation)
		return nil
	})
}

func (r *memoryReservations) FindActiveByOrderAndProduct(ctx context.Context, orderID, productID uuid.UUID) (*domain.StockReservation, error) {
	var out *domain.StockReservation
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.OrderID == orderID && res.ProductID == productID && res.IsActive() {
				out = cloneReservation(res)
				return nil
			}
		}
		return domain.ErrReservationNotFound
	})
	return out, err
}

func (r *memoryReservations) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.StockReservation, error) {
	var out []*domain.StockReservation
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.OrderID == orderID {
				out = append(out, cloneReservation(res))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
		return nil
	})
	return out, err
}

func (r *memoryReservations) FindActiveBefore(ctx context.Context, cutoff time.Time) ([]*domain.StockReservation, error) {
	var out []*domain.StockReservation
	err := access(r.store, r.tx, func(d *memoryData) error {
		for _, res := range d.reservations {
			if res.IsActive() && res.ReservedAt.Before(cutoff) {
				out = append(out, cloneReservation(res))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
		return nil
	})
	return out, err
}

type memoryProcessedEvents struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryProcessedEvents) Record(ctx context.Context, event *domain.ProcessedEvent) error {
	return access(r.store, r.tx, func(d *memoryData) error {
		if _, exists := d.processed[event.EventID]; exists {
			return ErrDuplicateEvent
		}
		ev := *event
		d.processed[event.EventID] = &ev
		return nil
	})
}

func (r *memoryProcessedEvents) WasProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := access(r.store, r.tx, func(d *memoryData) error {
		_, exists = d.processed[eventID]
		return nil
	})
	return exists, err
}
