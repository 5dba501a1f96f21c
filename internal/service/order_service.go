package service

import (
	"context"
	"errors"

	"stocksaga/internal/domain"
	"stocksaga/internal/events"
	"stocksaga/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService owns the order lifecycle: creation, confirmation, cancellation
// and fulfillment. State changes are persisted with optimistic concurrency and
// announced on the event stream; the inventory side reacts to those events,
// this service never touches stock directly.
type OrderService struct {
	store           repository.Store
	publisher       events.Publisher
	logger          *zap.Logger
	conflictRetries int
}

// NewOrderService creates a new order service.
func NewOrderService(store repository.Store, publisher events.Publisher, logger *zap.Logger, conflictRetries int) *OrderService {
	if conflictRetries < 1 {
		conflictRetries = 1
	}
	return &OrderService{
		store:           store,
		publisher:       publisher,
		logger:          logger,
		conflictRetries: conflictRetries,
	}
}

// CreateOrder validates the input, persists a Pending order and emits
// OrderCreated.
func (s *OrderService) CreateOrder(ctx context.Context, customerID uuid.UUID, items []domain.OrderItem, actor, correlationID string) (*domain.Order, error) {
	order, err := domain.NewOrder(customerID, items, actor)
	if err != nil {
		return nil, err
	}

	if err := s.store.Orders().Save(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_id", order.CustomerID.String()),
		zap.Float64("total_amount", order.TotalAmount))

	s.publish(ctx, events.OrderCreated{
		Metadata:    events.NewMetadata(correlationID),
		OrderID:     order.ID.String(),
		CustomerID:  order.CustomerID.String(),
		TotalAmount: order.TotalAmount,
		Items:       orderLines(order),
	})

	return order, nil
}

// ConfirmOrder transitions a Pending order to Confirmed and emits
// OrderConfirmed carrying the line items, which drives stock allocation.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uuid.UUID, actor, correlationID string) (*domain.Order, error) {
	order, err := s.updateOrder(ctx, orderID, func(o *domain.Order) error {
		return o.Confirm(actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order confirmed", zap.String("order_id", order.ID.String()))

	s.publish(ctx, events.OrderConfirmed{
		Metadata:   events.NewMetadata(correlationID),
		OrderID:    order.ID.String(),
		CustomerID: order.CustomerID.String(),
		Items:      orderLines(order),
	})

	return order, nil
}

// CancelOrder transitions a Pending or Confirmed order to Cancelled and emits
// OrderCancelled. The prior status travels with the event so the inventory
// side knows whether allocated stock must be released.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, reason, actor, correlationID string) (*domain.Order, error) {
	order, err := s.updateOrder(ctx, orderID, func(o *domain.Order) error {
		return o.Cancel(reason, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("previous_status", string(order.PreviousStatus)),
		zap.String("reason", reason))

	s.publish(ctx, events.OrderCancelled{
		Metadata:       events.NewMetadata(correlationID),
		OrderID:        order.ID.String(),
		CustomerID:     order.CustomerID.String(),
		PreviousStatus: string(order.PreviousStatus),
		Reason:         reason,
		Items:          orderLines(order),
	})

	return order, nil
}

// MarkFulfilled transitions a Confirmed order to Fulfilled. Fulfilled is
// terminal, so no compensating event is needed downstream.
func (s *OrderService) MarkFulfilled(ctx context.Context, orderID uuid.UUID, actor string) (*domain.Order, error) {
	order, err := s.updateOrder(ctx, orderID, func(o *domain.Order) error {
		return o.MarkFulfilled(actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order fulfilled", zap.String("order_id", order.ID.String()))
	return order, nil
}

// ValidateForConfirmation reports whether the order could be confirmed,
// without changing it.
func (s *OrderService) ValidateForConfirmation(ctx context.Context, orderID uuid.UUID) (domain.ValidationResult, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return order.ValidateForConfirmation(), nil
}

// ValidateForCancellation reports whether the order could be cancelled,
// without changing it.
func (s *OrderService) ValidateForCancellation(ctx context.Context, orderID uuid.UUID) (domain.ValidationResult, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return order.ValidateForCancellation(), nil
}

// GetOrder returns a single order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.store.Orders().FindByID(ctx, orderID)
}

// GetRecentOrders returns the most recently created orders.
func (s *OrderService) GetRecentOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	return s.store.Orders().FindRecent(ctx, limit)
}

// updateOrder loads the order, applies mutate and saves, retrying with fresh
// state when a concurrent writer won the version race.
func (s *OrderService) updateOrder(ctx context.Context, orderID uuid.UUID, mutate func(*domain.Order) error) (*domain.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= s.conflictRetries; attempt++ {
		order, err := s.store.Orders().FindByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		if err := mutate(order); err != nil {
			return nil, err
		}

		err = s.store.Orders().Save(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}

		lastErr = err
		s.logger.Warn("Version conflict on order update, retrying",
			zap.String("order_id", orderID.String()),
			zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

// publish sends an event, logging instead of failing the business operation
// when the broker is unavailable.
func (s *OrderService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

func orderLines(order *domain.Order) []events.OrderLine {
	lines := make([]events.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, events.OrderLine{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return lines
}
