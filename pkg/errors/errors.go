package errors

import (
	"fmt"
	"net/http"
)

// StandardError represents a standardized error response
type StandardError struct {
	Code    string `json:"error"`   // Error code/type (e.g., "ValidationError", "InsufficientStock")
	Message string `json:"message"` // Human-readable error message
	Details string `json:"details"` // Additional details (field name, quantities, etc.)
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for the error
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case "InvalidRequest", "ValidationError":
		return http.StatusBadRequest
	case "OrderNotFound", "ProductNotFound", "ResourceNotFound":
		return http.StatusNotFound
	case "DuplicateSKU", "VersionConflict", "Conflict":
		return http.StatusConflict
	case "InsufficientStock", "InactiveProduct", "InvalidStateTransition", "InvalidOperation":
		return http.StatusUnprocessableEntity
	case "BrokerConnectionError", "ServiceUnavailable":
		return http.StatusServiceUnavailable
	case "SerializationError", "DatabaseError", "InternalError":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewStandardError creates a new StandardError
func NewStandardError(errorCode, message, details string) *StandardError {
	return &StandardError{
		Code:    errorCode,
		Message: message,
		Details: details,
	}
}

// Common error constructors
func NewInvalidRequest(message, details string) *StandardError {
	return NewStandardError("InvalidRequest", message, details)
}

func NewValidationError(message string, violations []string) *StandardError {
	return NewStandardError("ValidationError", message, fmt.Sprintf("Violations: %v", violations))
}

func NewOrderNotFound(orderID string) *StandardError {
	return NewStandardError("OrderNotFound", "order not found", fmt.Sprintf("Order ID: %s", orderID))
}

func NewProductNotFound(productID string) *StandardError {
	return NewStandardError("ProductNotFound", "product not found", fmt.Sprintf("Product ID: %s", productID))
}

func NewDuplicateSKU(sku string) *StandardError {
	return NewStandardError("DuplicateSKU", "sku already exists", fmt.Sprintf("SKU: %s", sku))
}

func NewInsufficientStock(available, requested int) *StandardError {
	return NewStandardError("InsufficientStock", "insufficient stock available",
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

func NewInactiveProduct(productID string) *StandardError {
	return NewStandardError("InactiveProduct", "product is not active",
		fmt.Sprintf("Product ID: %s", productID))
}

func NewInvalidStateTransition(from, to string) *StandardError {
	return NewStandardError("InvalidStateTransition", "status transition not allowed",
		fmt.Sprintf("From: %s, To: %s", from, to))
}

func NewVersionConflict(resource string) *StandardError {
	return NewStandardError("VersionConflict", "concurrent modification detected, retries exhausted",
		fmt.Sprintf("Resource: %s", resource))
}

func NewSerializationError(err error) *StandardError {
	return NewStandardError("SerializationError", "failed to serialize data", err.Error())
}

func NewDatabaseError(operation string, err error) *StandardError {
	return NewStandardError("DatabaseError", fmt.Sprintf("database operation failed: %s", operation), err.Error())
}

func NewBrokerConnectionError(err error) *StandardError {
	return NewStandardError("BrokerConnectionError", "failed to connect to event broker", err.Error())
}

func NewInternalError(message string, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewStandardError("InternalError", message, details)
}
