package events

import (
	"time"

	"github.com/google/uuid"
)

// Metadata is carried by every domain event: a globally unique event id,
// the occurrence timestamp and an optional correlation id propagated
// end-to-end for tracing. Consumers de-duplicate on EventID.
type Metadata struct {
	EventID       string    `json:"eventId"`
	OccurredAt    time.Time `json:"occurredAt"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// NewMetadata creates metadata with a fresh event id.
func NewMetadata(correlationID string) Metadata {
	return Metadata{
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
	}
}

// Meta returns the event metadata.
func (m Metadata) Meta() Metadata { return m }

// Event is a domain event with a stable type name and metadata.
type Event interface {
	EventType() string
	Meta() Metadata
}

// OrderLine is the line-item payload carried inside order events, so the
// inventory side never needs a synchronous read against the order store.
type OrderLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderCreated is emitted when an order is created in Pending state.
type OrderCreated struct {
	Metadata
	OrderID     string      `json:"orderId"`
	CustomerID  string      `json:"customerId"`
	TotalAmount float64     `json:"totalAmount"`
	Items       []OrderLine `json:"items"`
}

func (e OrderCreated) EventType() string { return "OrderCreated" }

// OrderConfirmed is emitted when an order transitions to Confirmed. It is
// the event that drives stock allocation.
type OrderConfirmed struct {
	Metadata
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId"`
	Items      []OrderLine `json:"items"`
}

func (e OrderConfirmed) EventType() string { return "OrderConfirmed" }

// OrderCancelled is emitted when an order is cancelled. PreviousStatus tells
// the inventory side whether stock was allocated and must be released.
type OrderCancelled struct {
	Metadata
	OrderID        string      `json:"orderId"`
	CustomerID     string      `json:"customerId"`
	PreviousStatus string      `json:"previousStatus"`
	Reason         string      `json:"reason,omitempty"`
	Items          []OrderLine `json:"items"`
}

func (e OrderCancelled) EventType() string { return "OrderCancelled" }

// StockReserved is emitted when stock is tentatively claimed for an order.
type StockReserved struct {
	Metadata
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	Remaining  int    `json:"remaining"`
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
}

func (e StockReserved) EventType() string { return "StockReserved" }

// StockAllocated is emitted when stock is firmly committed to an order.
type StockAllocated struct {
	Metadata
	ProductID         string `json:"productId"`
	Quantity          int    `json:"quantity"`
	Remaining         int    `json:"remaining"`
	OrderID           string `json:"orderId"`
	CustomerID        string `json:"customerId"`
	LowStockTriggered bool   `json:"lowStockTriggered"`
}

func (e StockAllocated) EventType() string { return "StockAllocated" }

// StockReleased is emitted when stock returns to the available pool.
type StockReleased struct {
	Metadata
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	Remaining  int    `json:"remaining"`
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Reason     string `json:"reason,omitempty"`
}

func (e StockReleased) EventType() string { return "StockReleased" }

// LowStockAlert is emitted after an allocation leaves a product at or below
// its minimum threshold.
type LowStockAlert struct {
	Metadata
	ProductID string   `json:"productId"`
	SKU       string   `json:"sku"`
	Current   int      `json:"current"`
	Minimum   int      `json:"minimum"`
	Severity  Severity `json:"severity"`
}

func (e LowStockAlert) EventType() string { return "LowStockAlert" }

// Severity ranks how urgent a low-stock situation is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// SeverityFor ranks current stock against the minimum threshold: Critical at
// zero, High at or below 50% of minimum, Medium at or below 80%, else Low.
func SeverityFor(current, minimum int) Severity {
	switch {
	case current <= 0:
		return SeverityCritical
	case minimum > 0 && current*2 <= minimum:
		return SeverityHigh
	case minimum > 0 && current*5 <= minimum*4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
