package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is the aggregate root that owns the authoritative available-quantity
// counter for one catalog item. All stock mutation goes through its methods;
// the Version token is managed by the repository on save.
type Product struct {
	ID           uuid.UUID
	SKU          string
	Name         string
	Description  string
	Price        float64
	Available    StockQuantity
	Active       bool
	MinimumStock int
	CreatedBy    string
	UpdatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
}

// NewProduct creates a new product with an initial stock level.
func NewProduct(sku, name, description string, price float64, initialQuantity, minimumStock int, actor string) (*Product, error) {
	if sku == "" || name == "" {
		return nil, &DomainError{Message: "sku and name are required"}
	}
	if price < 0 {
		return nil, &DomainError{Message: "price cannot be negative"}
	}
	if minimumStock < 0 {
		return nil, ErrNegativeQuantity
	}
	available, err := NewStockQuantity(initialQuantity)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Product{
		ID:           uuid.New(),
		SKU:          sku,
		Name:         name,
		Description:  description,
		Price:        price,
		Available:    available,
		Active:       true,
		MinimumStock: minimumStock,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Reserve decrements available stock for a tentative claim.
func (p *Product) Reserve(quantity int, actor string) error {
	return p.decrement(quantity, actor)
}

// Allocate decrements available stock as a firm commitment. Reservation and
// allocation draw from the same counter, so a caller that already reserved
// for an order must not allocate the same units again.
func (p *Product) Allocate(quantity int, actor string) error {
	return p.decrement(quantity, actor)
}

func (p *Product) decrement(quantity int, actor string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.Active {
		return ErrInactiveProduct
	}
	next, err := p.Available.Subtract(quantity)
	if err != nil {
		return err
	}
	p.Available = next
	p.touch(actor)
	return nil
}

// Release returns quantity to the available counter unconditionally. It is a
// compensation operation; idempotency is the caller's responsibility via the
// processed-event ledger.
func (p *Product) Release(quantity int, actor string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	next, err := p.Available.Add(quantity)
	if err != nil {
		return err
	}
	p.Available = next
	p.touch(actor)
	return nil
}

// AddStock is a manual correction that increases available stock.
func (p *Product) AddStock(quantity int, actor string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	next, err := p.Available.Add(quantity)
	if err != nil {
		return err
	}
	p.Available = next
	p.touch(actor)
	return nil
}

// RemoveStock is a manual correction that decreases available stock.
func (p *Product) RemoveStock(quantity int, actor string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	next, err := p.Available.Subtract(quantity)
	if err != nil {
		return err
	}
	p.Available = next
	p.touch(actor)
	return nil
}

// Deactivate marks the product unavailable for reserve/allocate operations.
func (p *Product) Deactivate(actor string) {
	p.Active = false
	p.touch(actor)
}

// IsLowStock reports whether available stock is at or below the minimum threshold.
func (p *Product) IsLowStock() bool {
	return p.Available.Value() <= p.MinimumStock
}

// IsOutOfStock reports whether no stock is available.
func (p *Product) IsOutOfStock() bool {
	return p.Available.IsZero()
}

// IsAvailableForOrder reports whether the product can accept new orders.
func (p *Product) IsAvailableForOrder() bool {
	return p.Active && !p.Available.IsZero()
}

func (p *Product) touch(actor string) {
	p.UpdatedBy = actor
	p.UpdatedAt = time.Now().UTC()
}
