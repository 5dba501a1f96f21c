package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stocksaga/internal/domain"
	"stocksaga/internal/events"
	"stocksaga/internal/repository"
	"stocksaga/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Processor applies order lifecycle events to the stock ledger. Delivery is
// at least once, so every event is recorded in the processed-event ledger in
// the same transaction as its stock mutations: a redelivered event hits the
// ledger's unique constraint and becomes a no-op.
type Processor struct {
	store     repository.Store
	inventory *service.InventoryService
	publisher events.Publisher
	logger    *zap.Logger
}

// NewProcessor creates a new saga processor.
func NewProcessor(store repository.Store, inventory *service.InventoryService, publisher events.Publisher, logger *zap.Logger) *Processor {
	return &Processor{
		store:     store,
		inventory: inventory,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessEvent processes a single event. A version conflict returns an error
// so the consumer can redeliver; a duplicate event returns nil.
func (p *Processor) ProcessEvent(ctx context.Context, eventType string, eventData []byte) error {
	switch eventType {
	case "OrderCreated":
		return p.processOrderCreated(ctx, eventData)
	case "OrderConfirmed":
		return p.processOrderConfirmed(ctx, eventData)
	case "OrderCancelled":
		return p.processOrderCancelled(ctx, eventData)
	default:
		return fmt.Errorf("unknown event type: %s", eventType)
	}
}

// processOrderCreated reserves stock for each line of a new order. A line
// that cannot be reserved is logged and skipped; the order side decides what
// to do with a partially reservable order at confirmation time.
func (p *Processor) processOrderCreated(ctx context.Context, eventData []byte) error {
	var event events.OrderCreated
	if err := json.Unmarshal(eventData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order ID: %w", err)
	}

	var pending []events.Event
	err = p.runOnce(ctx, event.Metadata, "OrderCreated", event.OrderID, func(tx repository.Store) error {
		pending = pending[:0]
		for _, line := range event.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return fmt.Errorf("invalid product ID: %w", err)
			}

			change, err := p.inventory.ReserveInTx(ctx, tx, orderID, productID, line.Quantity, event.CustomerID, event.CorrelationID)
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrInactiveProduct) {
					p.logger.Warn("Could not reserve stock for order line",
						zap.String("order_id", event.OrderID),
						zap.String("product_id", line.ProductID),
						zap.Int("quantity", line.Quantity),
						zap.Error(err))
					continue
				}
				return err
			}
			pending = append(pending, change.Events...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.publishAll(ctx, pending)
	return nil
}

// processOrderConfirmed allocates stock for each line of a confirmed order.
func (p *Processor) processOrderConfirmed(ctx context.Context, eventData []byte) error {
	var event events.OrderConfirmed
	if err := json.Unmarshal(eventData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order ID: %w", err)
	}

	var pending []events.Event
	err = p.runOnce(ctx, event.Metadata, "OrderConfirmed", event.OrderID, func(tx repository.Store) error {
		pending = pending[:0]
		for _, line := range event.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return fmt.Errorf("invalid product ID: %w", err)
			}

			change, err := p.inventory.AllocateInTx(ctx, tx, orderID, productID, line.Quantity, event.CustomerID, event.CorrelationID)
			if err != nil {
				return fmt.Errorf("failed to allocate stock for product %s: %w", line.ProductID, err)
			}
			pending = append(pending, change.Events...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info("Stock allocated for order", zap.String("order_id", event.OrderID))
	p.publishAll(ctx, pending)
	return nil
}

// processOrderCancelled releases stock for each line of a cancelled order.
// The event's previous status tells us whether allocation had happened.
func (p *Processor) processOrderCancelled(ctx context.Context, eventData []byte) error {
	var event events.OrderCancelled
	if err := json.Unmarshal(eventData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	orderID, err := uuid.Parse(event.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order ID: %w", err)
	}

	wasAllocated := event.PreviousStatus == string(domain.OrderConfirmed)

	var pending []events.Event
	err = p.runOnce(ctx, event.Metadata, "OrderCancelled", event.OrderID, func(tx repository.Store) error {
		pending = pending[:0]
		for _, line := range event.Items {
			productID, err := uuid.Parse(line.ProductID)
			if err != nil {
				return fmt.Errorf("invalid product ID: %w", err)
			}

			change, err := p.inventory.ReleaseInTx(ctx, tx, orderID, productID, line.Quantity, event.Reason, event.CustomerID, event.CorrelationID, wasAllocated)
			if err != nil {
				return fmt.Errorf("failed to release stock for product %s: %w", line.ProductID, err)
			}
			pending = append(pending, change.Events...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info("Stock released for order",
		zap.String("order_id", event.OrderID),
		zap.String("previous_status", event.PreviousStatus))
	p.publishAll(ctx, pending)
	return nil
}

// runOnce records the event in the ledger and applies fn in one transaction.
// The ledger insert goes first; a duplicate means the event was already
// applied, and the whole transaction rolls back without touching stock.
func (p *Processor) runOnce(ctx context.Context, meta events.Metadata, eventType, orderID string, fn func(tx repository.Store) error) error {
	if meta.EventID == "" {
		return fmt.Errorf("event of type %s is missing an event id", eventType)
	}

	err := p.store.InTx(ctx, func(tx repository.Store) error {
		ledger := domain.NewProcessedEvent(meta.EventID, eventType, orderID, meta.CorrelationID)
		if err := tx.ProcessedEvents().Record(ctx, ledger); err != nil {
			return err
		}
		return fn(tx)
	})
	if errors.Is(err, repository.ErrDuplicateEvent) {
		p.logger.Info("Event already processed, skipping",
			zap.String("event_id", meta.EventID),
			zap.String("event_type", eventType),
			zap.String("order_id", orderID))
		return nil
	}
	return err
}

func (p *Processor) publishAll(ctx context.Context, pending []events.Event) {
	if p.publisher == nil {
		return
	}
	for _, event := range pending {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Warn("Failed to publish event",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
}
