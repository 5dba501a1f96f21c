package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderFulfilled OrderStatus = "FULFILLED"
)

// orderTransitions is the single allowed-transitions table for the order
// state machine. Fulfilled and Cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderFulfilled, OrderCancelled},
}

// CanTransitionTo reports whether the transition is allowed.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OrderItem is a line item within an order. Product name and unit price are
// snapshots taken at order creation.
type OrderItem struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice float64
}

// Subtotal returns quantity times unit price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// ValidationResult is a side-effect-free rule check outcome.
type ValidationResult struct {
	Valid      bool
	Violations []string
}

// Order is the aggregate root for a customer order. Items are fixed at
// creation; the total always equals the sum of item subtotals.
type Order struct {
	ID             uuid.UUID
	CustomerID     uuid.UUID
	Status         OrderStatus
	Items          []OrderItem
	TotalAmount    float64
	PreviousStatus OrderStatus
	CancelReason   string
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// NewOrder validates input and creates an order in Pending state.
func NewOrder(customerID uuid.UUID, items []OrderItem, actor string) (*Order, error) {
	if result := ValidateOrderInput(customerID, items); !result.Valid {
		return nil, &DomainError{Message: fmt.Sprintf("invalid order: %v", result.Violations)}
	}

	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}

	now := time.Now().UTC()
	return &Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Status:      OrderPending,
		Items:       items,
		TotalAmount: total,
		CreatedBy:   actor,
		UpdatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateOrderInput checks creation rules without side effects.
func ValidateOrderInput(customerID uuid.UUID, items []OrderItem) ValidationResult {
	var violations []string

	if customerID == uuid.Nil {
		violations = append(violations, "customer id is required")
	}
	if len(items) == 0 {
		violations = append(violations, "order must have at least one item")
	}

	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			violations = append(violations, "item product id is required")
		}
		if item.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("item quantity must be positive (product %s)", item.ProductID))
		}
		if item.UnitPrice < 0 {
			violations = append(violations, fmt.Sprintf("item unit price cannot be negative (product %s)", item.ProductID))
		}
		if seen[item.ProductID] {
			violations = append(violations, fmt.Sprintf("duplicate product in order: %s", item.ProductID))
		}
		seen[item.ProductID] = true
	}

	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

// Confirm transitions the order from Pending to Confirmed.
func (o *Order) Confirm(actor string) error {
	if result := o.ValidateForConfirmation(); !result.Valid {
		return ErrInvalidTransition
	}
	o.Status = OrderConfirmed
	o.touch(actor)
	return nil
}

// Cancel transitions the order to Cancelled, recording the prior status and
// an optional reason. Fulfilled orders cannot be cancelled.
func (o *Order) Cancel(reason, actor string) error {
	if result := o.ValidateForCancellation(); !result.Valid {
		return ErrInvalidTransition
	}
	o.PreviousStatus = o.Status
	o.Status = OrderCancelled
	o.CancelReason = reason
	o.touch(actor)
	return nil
}

// MarkFulfilled transitions the order from Confirmed to Fulfilled.
func (o *Order) MarkFulfilled(actor string) error {
	if !o.Status.CanTransitionTo(OrderFulfilled) {
		return ErrInvalidTransition
	}
	o.Status = OrderFulfilled
	o.touch(actor)
	return nil
}

// ValidateForConfirmation checks confirmation rules without side effects.
func (o *Order) ValidateForConfirmation() ValidationResult {
	var violations []string
	if o.Status != OrderPending {
		violations = append(violations, fmt.Sprintf("order status must be %s, got %s", OrderPending, o.Status))
	}
	if len(o.Items) == 0 {
		violations = append(violations, "order has no items")
	}
	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

// ValidateForCancellation checks cancellation rules without side effects.
func (o *Order) ValidateForCancellation() ValidationResult {
	var violations []string
	switch o.Status {
	case OrderFulfilled:
		violations = append(violations, "fulfilled orders cannot be cancelled")
	case OrderCancelled:
		violations = append(violations, "order is already cancelled")
	}
	return ValidationResult{Valid: len(violations) == 0, Violations: violations}
}

func (o *Order) touch(actor string) {
	o.UpdatedBy = actor
	o.UpdatedAt = time.Now().UTC()
}
