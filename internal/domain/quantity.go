package domain

// StockQuantity is an immutable non-negative integer quantity.
// Arithmetic that would produce a negative value fails instead of clamping;
// every operation returns a fresh value, the receiver is never mutated.
type StockQuantity struct {
	value int
}

// NewStockQuantity creates a StockQuantity, rejecting negative values.
func NewStockQuantity(value int) (StockQuantity, error) {
	if value < 0 {
		return StockQuantity{}, ErrNegativeQuantity
	}
	return StockQuantity{value: value}, nil
}

// MustStockQuantity creates a StockQuantity and panics on a negative value.
// Intended for literals in tests and seed data.
func MustStockQuantity(value int) StockQuantity {
	q, err := NewStockQuantity(value)
	if err != nil {
		panic(err)
	}
	return q
}

// Value returns the underlying integer.
func (q StockQuantity) Value() int {
	return q.value
}

// Add returns a new quantity increased by n.
func (q StockQuantity) Add(n int) (StockQuantity, error) {
	if n < 0 {
		return StockQuantity{}, ErrNegativeQuantity
	}
	return StockQuantity{value: q.value + n}, nil
}

// Subtract returns a new quantity decreased by n, failing if the result
// would be negative.
func (q StockQuantity) Subtract(n int) (StockQuantity, error) {
	if n < 0 {
		return StockQuantity{}, ErrNegativeQuantity
	}
	if q.value < n {
		return StockQuantity{}, ErrInsufficientStock
	}
	return StockQuantity{value: q.value - n}, nil
}

// IsSufficient reports whether at least n units are available.
func (q StockQuantity) IsSufficient(n int) bool {
	return q.value >= n
}

// IsZero reports whether no units are available.
func (q StockQuantity) IsZero() bool {
	return q.value == 0
}
