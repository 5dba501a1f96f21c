package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"stocksaga/internal/domain"
	"stocksaga/internal/events"
	"stocksaga/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryService owns the product catalog and the stock ledger. All stock
// mutations go through the product aggregate inside a store transaction, so
// the reservation rows and the available counter always move together.
type InventoryService struct {
	store           repository.Store
	publisher       events.Publisher
	logger          *zap.Logger
	conflictRetries int
	reservationTTL  time.Duration
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(store repository.Store, publisher events.Publisher, logger *zap.Logger, conflictRetries int, reservationTTL time.Duration) *InventoryService {
	if conflictRetries < 1 {
		conflictRetries = 1
	}
	return &InventoryService{
		store:           store,
		publisher:       publisher,
		logger:          logger,
		conflictRetries: conflictRetries,
		reservationTTL:  reservationTTL,
	}
}

// CreateProduct registers a new product with its initial stock level.
func (s *InventoryService) CreateProduct(ctx context.Context, sku, name, description string, price float64, initialQuantity, minimumStock int, actor string) (*domain.Product, error) {
	product, err := domain.NewProduct(sku, name, description, price, initialQuantity, minimumStock, actor)
	if err != nil {
		return nil, err
	}

	if err := s.store.Products().Save(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
		zap.Int("initial_quantity", product.Available.Value()))

	return product, nil
}

// UpdateProduct changes catalog attributes. Stock levels are not touched here.
func (s *InventoryService) UpdateProduct(ctx context.Context, productID uuid.UUID, name, description string, price float64, minimumStock int, actor string) (*domain.Product, error) {
	return s.updateProduct(ctx, productID, func(p *domain.Product) error {
		if name == "" {
			return &domain.DomainError{Message: "name is required"}
		}
		if price < 0 {
			return &domain.DomainError{Message: "price cannot be negative"}
		}
		if minimumStock < 0 {
			return &domain.DomainError{Message: "minimum stock cannot be negative"}
		}
		p.Name = name
		p.Description = description
		p.Price = price
		p.MinimumStock = minimumStock
		p.UpdatedBy = actor
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
}

// DeactivateProduct removes a product from sale. Existing stock stays on the
// books.
func (s *InventoryService) DeactivateProduct(ctx context.Context, productID uuid.UUID, actor string) (*domain.Product, error) {
	product, err := s.updateProduct(ctx, productID, func(p *domain.Product) error {
		p.Deactivate(actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product deactivated", zap.String("product_id", productID.String()))
	return product, nil
}

// AdjustStock applies a manual correction to the available counter. The actor
// and reason are recorded in the log for audit; adjustments do not emit
// public stock events.
func (s *InventoryService) AdjustStock(ctx context.Context, productID uuid.UUID, delta int, reason, actor string) (*domain.Product, error) {
	if delta == 0 {
		return nil, &domain.DomainError{Message: "adjustment must be non-zero"}
	}

	product, err := s.updateProduct(ctx, productID, func(p *domain.Product) error {
		if delta > 0 {
			return p.AddStock(delta, actor)
		}
		return p.RemoveStock(-delta, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stock adjusted",
		zap.String("product_id", productID.String()),
		zap.Int("delta", delta),
		zap.Int("available", product.Available.Value()),
		zap.String("actor", actor),
		zap.String("reason", reason))

	return product, nil
}

// ReservationOutcome reports the result of a reservation attempt. A business
// rejection (not enough stock, inactive product) is a normal outcome, not an
// error.
type ReservationOutcome struct {
	Success     bool
	Message     string
	Reservation *domain.StockReservation
	Remaining   int
}

// ReserveStock tentatively claims stock for an order: the available counter
// is decremented and an Active reservation row is written in one transaction.
func (s *InventoryService) ReserveStock(ctx context.Context, orderID, productID uuid.UUID, quantity int, customerID, correlationID string) (*ReservationOutcome, error) {
	var (
		outcome *ReservationOutcome
		pending []events.Event
	)

	err := s.withConflictRetry(ctx, func(tx repository.Store) error {
		pending = pending[:0]
		change, err := s.ReserveInTx(ctx, tx, orderID, productID, quantity, customerID, correlationID)
		if err != nil {
			if isReservationRejection(err) {
				outcome = &ReservationOutcome{Success: false, Message: err.Error()}
				return nil
			}
			return err
		}
		outcome = &ReservationOutcome{
			Success:     true,
			Message:     "stock reserved",
			Reservation: change.Reservation,
			Remaining:   change.Product.Available.Value(),
		}
		pending = change.Events
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(ctx, pending)
	return outcome, nil
}

// AllocateStock firmly commits stock to an order. Published events include a
// LowStockAlert when the allocation crosses the minimum threshold.
func (s *InventoryService) AllocateStock(ctx context.Context, orderID, productID uuid.UUID, quantity int, customerID, correlationID string) (*domain.Product, error) {
	var (
		product *domain.Product
		pending []events.Event
	)

	err := s.withConflictRetry(ctx, func(tx repository.Store) error {
		change, err := s.AllocateInTx(ctx, tx, orderID, productID, quantity, customerID, correlationID)
		if err != nil {
			return err
		}
		product = change.Product
		pending = change.Events
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(ctx, pending)
	return product, nil
}

// ReleaseStock returns stock claimed by an order to the available pool.
// wasAllocated tells us whether the order had already been confirmed, in
// which case stock moved even if no Active reservation remains.
func (s *InventoryService) ReleaseStock(ctx context.Context, orderID, productID uuid.UUID, quantity int, reason, customerID, correlationID string, wasAllocated bool) (*domain.Product, error) {
	var (
		product *domain.Product
		pending []events.Event
	)

	err := s.withConflictRetry(ctx, func(tx repository.Store) error {
		change, err := s.ReleaseInTx(ctx, tx, orderID, productID, quantity, reason, customerID, correlationID, wasAllocated)
		if err != nil {
			return err
		}
		product = change.Product
		pending = change.Events
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(ctx, pending)
	return product, nil
}

// isReservationRejection distinguishes a business "no" from a real failure.
func isReservationRejection(err error) bool {
	return errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrInactiveProduct) ||
		errors.Is(err, domain.ErrInvalidQuantity)
}

// StockChange is the result of a transaction-scoped stock operation. Events
// must be published by the caller only after the transaction commits.
type StockChange struct {
	Product     *domain.Product
	Reservation *domain.StockReservation
	Events      []events.Event
}

// ReserveInTx performs the reservation inside the caller's transaction.
func (s *InventoryService) ReserveInTx(ctx context.Context, tx repository.Store, orderID, productID uuid.UUID, quantity int, customerID, correlationID string) (*StockChange, error) {
	product, err := tx.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	if err := product.Reserve(quantity, "inventory-service"); err != nil {
		return nil, err
	}

	reservation, err := domain.NewStockReservation(productID, product.Name, orderID, quantity, correlationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Products().Save(ctx, product); err != nil {
		return nil, err
	}
	if err := tx.Reservations().Save(ctx, reservation); err != nil {
		return nil, err
	}

	return &StockChange{
		Product:     product,
		Reservation: reservation,
		Events: []events.Event{events.StockReserved{
			Metadata:   events.NewMetadata(correlationID),
			ProductID:  productID.String(),
			Quantity:   quantity,
			Remaining:  product.Available.Value(),
			OrderID:    orderID.String(),
			CustomerID: customerID,
		}},
	}, nil
}

// AllocateInTx commits stock to an order inside the caller's transaction.
// When an Active reservation for this order and product exists, it is
// completed and the counter is untouched: the reservation already moved the
// stock. Without one, the counter is decremented directly.
func (s *InventoryService) AllocateInTx(ctx context.Context, tx repository.Store, orderID, productID uuid.UUID, quantity int, customerID, correlationID string) (*StockChange, error) {
	product, err := tx.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	reservation, err := tx.Reservations().FindActiveByOrderAndProduct(ctx, orderID, productID)
	switch {
	case err == nil:
		if err := reservation.Complete(); err != nil {
			return nil, err
		}
		if err := tx.Reservations().Save(ctx, reservation); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrReservationNotFound):
		if err := product.Allocate(quantity, "inventory-service"); err != nil {
			return nil, err
		}
		if err := tx.Products().Save(ctx, product); err != nil {
			return nil, err
		}
		reservation = nil
	default:
		return nil, err
	}

	lowStock := product.IsLowStock()
	change := &StockChange{
		Product:     product,
		Reservation: reservation,
		Events: []events.Event{events.StockAllocated{
			Metadata:          events.NewMetadata(correlationID),
			ProductID:         productID.String(),
			Quantity:          quantity,
			Remaining:         product.Available.Value(),
			OrderID:           orderID.String(),
			CustomerID:        customerID,
			LowStockTriggered: lowStock,
		}},
	}

	if lowStock {
		change.Events = append(change.Events, events.LowStockAlert{
			Metadata:  events.NewMetadata(correlationID),
			ProductID: productID.String(),
			SKU:       product.SKU,
			Current:   product.Available.Value(),
			Minimum:   product.MinimumStock,
			Severity:  events.SeverityFor(product.Available.Value(), product.MinimumStock),
		})
	}

	return change, nil
}

// ReleaseInTx returns claimed stock inside the caller's transaction. An
// Active reservation is cancelled and its stock returned. Without one, stock
// is returned only when the order had been allocated; otherwise nothing was
// ever claimed and the release is a no-op.
func (s *InventoryService) ReleaseInTx(ctx context.Context, tx repository.Store, orderID, productID uuid.UUID, quantity int, reason, customerID, correlationID string, wasAllocated bool) (*StockChange, error) {
	product, err := tx.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	reservation, err := tx.Reservations().FindActiveByOrderAndProduct(ctx, orderID, productID)
	switch {
	case err == nil:
		if err := reservation.Cancel(); err != nil {
			return nil, err
		}
		if err := tx.Reservations().Save(ctx, reservation); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrReservationNotFound):
		if !wasAllocated {
			return &StockChange{Product: product}, nil
		}
		reservation = nil
	default:
		return nil, err
	}

	if err := product.Release(quantity, "inventory-service"); err != nil {
		return nil, err
	}
	if err := tx.Products().Save(ctx, product); err != nil {
		return nil, err
	}

	return &StockChange{
		Product:     product,
		Reservation: reservation,
		Events: []events.Event{events.StockReleased{
			Metadata:   events.NewMetadata(correlationID),
			ProductID:  productID.String(),
			Quantity:   quantity,
			Remaining:  product.Available.Value(),
			OrderID:    orderID.String(),
			CustomerID: customerID,
			Reason:     reason,
		}},
	}, nil
}

// StockRequest is one line of an availability check.
type StockRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// AvailabilityLine is the per-product answer of an availability check.
type AvailabilityLine struct {
	ProductID  uuid.UUID
	SKU        string
	Requested  int
	Available  int
	Sufficient bool
}

// AvailabilityReport aggregates an availability check across all requested
// products.
type AvailabilityReport struct {
	AllAvailable bool
	Lines        []AvailabilityLine
}

// ValidateStockAvailability answers, without reserving anything, whether
// every requested quantity could currently be served.
func (s *InventoryService) ValidateStockAvailability(ctx context.Context, requests []StockRequest) (*AvailabilityReport, error) {
	if len(requests) == 0 {
		return nil, &domain.DomainError{Message: "at least one product is required"}
	}

	report := &AvailabilityReport{AllAvailable: true}
	for _, req := range requests {
		product, err := s.store.Products().FindByID(ctx, req.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", req.ProductID, err)
		}

		sufficient := product.IsAvailableForOrder() && product.Available.IsSufficient(req.Quantity)
		report.Lines = append(report.Lines, AvailabilityLine{
			ProductID:  product.ID,
			SKU:        product.SKU,
			Requested:  req.Quantity,
			Available:  product.Available.Value(),
			Sufficient: sufficient,
		})
		if !sufficient {
			report.AllAvailable = false
		}
	}
	return report, nil
}

// Recommendation suggests a replenishment quantity for a low-stock product.
type Recommendation struct {
	ProductID uuid.UUID
	SKU       string
	Name      string
	Current   int
	Minimum   int
	Suggested int
	Severity  events.Severity
}

var severityRank = map[events.Severity]int{
	events.SeverityCritical: 0,
	events.SeverityHigh:     1,
	events.SeverityMedium:   2,
	events.SeverityLow:      3,
}

// GetReplenishmentRecommendations lists products at or below their minimum,
// most urgent first. The suggested quantity refills to double the minimum.
func (s *InventoryService) GetReplenishmentRecommendations(ctx context.Context) ([]Recommendation, error) {
	products, err := s.store.Products().FindBelowMinimum(ctx)
	if err != nil {
		return nil, err
	}

	recommendations := make([]Recommendation, 0, len(products))
	for _, p := range products {
		suggested := 2*p.MinimumStock - p.Available.Value()
		if suggested < 1 {
			suggested = 1
		}
		recommendations = append(recommendations, Recommendation{
			ProductID: p.ID,
			SKU:       p.SKU,
			Name:      p.Name,
			Current:   p.Available.Value(),
			Minimum:   p.MinimumStock,
			Suggested: suggested,
			Severity:  events.SeverityFor(p.Available.Value(), p.MinimumStock),
		})
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return severityRank[recommendations[i].Severity] < severityRank[recommendations[j].Severity]
	})
	return recommendations, nil
}

// ExpireStaleReservations cancels reservations older than the TTL and returns
// their stock. It reports how many reservations were expired.
func (s *InventoryService) ExpireStaleReservations(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.reservationTTL)

	var (
		expired int
		pending []events.Event
	)

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		stale, err := tx.Reservations().FindActiveBefore(ctx, cutoff)
		if err != nil {
			return err
		}

		for _, reservation := range stale {
			if err := reservation.Expire(); err != nil {
				return err
			}
			if err := tx.Reservations().Save(ctx, reservation); err != nil {
				return err
			}

			product, err := tx.Products().FindByID(ctx, reservation.ProductID)
			if err != nil {
				return err
			}
			if err := product.Release(reservation.Quantity, "expiry-sweep"); err != nil {
				return err
			}
			if err := tx.Products().Save(ctx, product); err != nil {
				return err
			}

			pending = append(pending, events.StockReleased{
				Metadata:  events.NewMetadata(reservation.CorrelationID),
				ProductID: reservation.ProductID.String(),
				Quantity:  reservation.Quantity,
				Remaining: product.Available.Value(),
				OrderID:   reservation.OrderID.String(),
				Reason:    "reservation expired",
			})
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.logger.Info("Expired stale reservations", zap.Int("count", expired))
		s.publishAll(ctx, pending)
	}
	return expired, nil
}

// GetProduct returns a single product.
func (s *InventoryService) GetProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	return s.store.Products().FindByID(ctx, productID)
}

// GetProductBySKU returns a single product by its SKU.
func (s *InventoryService) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return s.store.Products().FindBySKU(ctx, sku)
}

// ListProducts returns the full catalog.
func (s *InventoryService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.store.Products().FindAll(ctx)
}

// GetLowStockProducts returns active products at or below their minimum.
func (s *InventoryService) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.store.Products().FindBelowMinimum(ctx)
}

// updateProduct loads the product, applies mutate and saves, retrying with
// fresh state when a concurrent writer won the version race.
func (s *InventoryService) updateProduct(ctx context.Context, productID uuid.UUID, mutate func(*domain.Product) error) (*domain.Product, error) {
	var lastErr error
	for attempt := 1; attempt <= s.conflictRetries; attempt++ {
		product, err := s.store.Products().FindByID(ctx, productID)
		if err != nil {
			return nil, err
		}

		if err := mutate(product); err != nil {
			return nil, err
		}

		err = s.store.Products().Save(ctx, product)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		s.logger.Warn("Version conflict on product update, retrying",
			zap.String("product_id", productID.String()),
			zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

// withConflictRetry runs fn in a transaction, retrying the whole transaction
// when it lost a version race.
func (s *InventoryService) withConflictRetry(ctx context.Context, fn func(tx repository.Store) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.conflictRetries; attempt++ {
		err := s.store.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		lastErr = err
		s.logger.Warn("Version conflict in stock transaction, retrying", zap.Int("attempt", attempt))
	}
	return lastErr
}

func (s *InventoryService) publishAll(ctx context.Context, pending []events.Event) {
	if s.publisher == nil {
		return
	}
	for _, event := range pending {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}
