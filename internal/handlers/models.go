package handlers

import (
	"time"

	"stocksaga/internal/domain"
	"stocksaga/internal/service"
)

// CreateOrderRequest is the payload for POST /api/v1/orders.
type CreateOrderRequest struct {
	CustomerID string             `json:"customerId" binding:"required,uuid"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest is one order line in a create request.
type OrderItemRequest struct {
	ProductID string  `json:"productId" binding:"required,uuid"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	UnitPrice float64 `json:"unitPrice" binding:"min=0"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/:id/cancel.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderItemResponse is one order line in a response.
type OrderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

// OrderResponse is the API shape of an order.
type OrderResponse struct {
	ID             string              `json:"id"`
	CustomerID     string              `json:"customerId"`
	Status         string              `json:"status"`
	Items          []OrderItemResponse `json:"items"`
	TotalAmount    float64             `json:"totalAmount"`
	PreviousStatus string              `json:"previousStatus,omitempty"`
	CancelReason   string              `json:"cancelReason,omitempty"`
	Version        int                 `json:"version"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return OrderResponse{
		ID:             order.ID.String(),
		CustomerID:     order.CustomerID.String(),
		Status:         string(order.Status),
		Items:          items,
		TotalAmount:    order.TotalAmount,
		PreviousStatus: string(order.PreviousStatus),
		CancelReason:   order.CancelReason,
		Version:        order.Version,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

// ValidationResponse reports whether an order operation would be allowed.
type ValidationResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// CreateProductRequest is the payload for POST /api/v1/products.
type CreateProductRequest struct {
	SKU             string  `json:"sku" binding:"required"`
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	Price           float64 `json:"price" binding:"min=0"`
	InitialQuantity int     `json:"initialQuantity" binding:"min=0"`
	MinimumStock    int     `json:"minimumStock" binding:"min=0"`
}

// UpdateProductRequest is the payload for PUT /api/v1/products/:id.
type UpdateProductRequest struct {
	Name         string  `json:"name" binding:"required"`
	Description  string  `json:"description"`
	Price        float64 `json:"price" binding:"min=0"`
	MinimumStock int     `json:"minimumStock" binding:"min=0"`
}

// AdjustStockRequest is the payload for POST /api/v1/products/:id/adjust.
// Positive quantities add stock, negative quantities remove it.
type AdjustStockRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// ReserveStockRequest is the payload for POST /api/v1/products/:id/reserve.
type ReserveStockRequest struct {
	OrderID  string `json:"orderId" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// ReleaseStockRequest is the payload for POST /api/v1/products/:id/release.
type ReleaseStockRequest struct {
	OrderID  string `json:"orderId" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Reason   string `json:"reason"`
}

// ProductResponse is the API shape of a product.
type ProductResponse struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	Available    int       `json:"available"`
	Active       bool      `json:"active"`
	MinimumStock int       `json:"minimumStock"`
	LowStock     bool      `json:"lowStock"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toProductResponse(product *domain.Product) ProductResponse {
	return ProductResponse{
		ID:           product.ID.String(),
		SKU:          product.SKU,
		Name:         product.Name,
		Description:  product.Description,
		Price:        product.Price,
		Available:    product.Available.Value(),
		Active:       product.Active,
		MinimumStock: product.MinimumStock,
		LowStock:     product.IsLowStock(),
		Version:      product.Version,
		CreatedAt:    product.CreatedAt,
		UpdatedAt:    product.UpdatedAt,
	}
}

// ReservationResponse is the API shape of a reservation attempt.
type ReservationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ReservationID string `json:"reservationId,omitempty"`
	Status        string `json:"status,omitempty"`
	Remaining     int    `json:"remaining"`
}

// AvailabilityRequest is the payload for POST /api/v1/stock/validate.
type AvailabilityRequest struct {
	Items []AvailabilityItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AvailabilityItemRequest is one line of an availability check.
type AvailabilityItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AvailabilityLineResponse is the per-product answer of an availability check.
type AvailabilityLineResponse struct {
	ProductID  string `json:"productId"`
	SKU        string `json:"sku"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

// AvailabilityResponse is the full availability check answer.
type AvailabilityResponse struct {
	AllAvailable bool                       `json:"allAvailable"`
	Items        []AvailabilityLineResponse `json:"items"`
}

func toAvailabilityResponse(report *service.AvailabilityReport) AvailabilityResponse {
	items := make([]AvailabilityLineResponse, 0, len(report.Lines))
	for _, line := range report.Lines {
		items = append(items, AvailabilityLineResponse{
			ProductID:  line.ProductID.String(),
			SKU:        line.SKU,
			Requested:  line.Requested,
			Available:  line.Available,
			Sufficient: line.Sufficient,
		})
	}
	return AvailabilityResponse{AllAvailable: report.AllAvailable, Items: items}
}

// RecommendationResponse is one replenishment suggestion.
type RecommendationResponse struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Current   int    `json:"current"`
	Minimum   int    `json:"minimum"`
	Suggested int    `json:"suggested"`
	Severity  string `json:"severity"`
}
