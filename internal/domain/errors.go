package domain

// DomainError represents a domain-level error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Domain errors
var (
	ErrInsufficientStock   = &DomainError{Message: "insufficient stock available"}
	ErrInactiveProduct     = &DomainError{Message: "product is not active"}
	ErrInvalidQuantity     = &DomainError{Message: "quantity must be positive"}
	ErrNegativeQuantity    = &DomainError{Message: "quantity cannot be negative"}
	ErrInvalidTransition   = &DomainError{Message: "status transition not allowed"}
	ErrProductNotFound     = &DomainError{Message: "product not found"}
	ErrOrderNotFound       = &DomainError{Message: "order not found"}
	ErrReservationNotFound = &DomainError{Message: "reservation not found"}
)
