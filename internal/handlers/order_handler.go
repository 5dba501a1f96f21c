package handlers

import (
	"net/http"
	"strconv"

	"stocksaga/internal/domain"
	"stocksaga/internal/service"
	"stocksaga/pkg/errors"
	"stocksaga/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderHandler exposes the order lifecycle over HTTP.
type OrderHandler struct {
	service *service.OrderService
	logger  *zap.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the order routes on the given group.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.CreateOrder)
	rg.GET("/orders", h.ListOrders)
	rg.GET("/orders/:id", h.GetOrder)
	rg.POST("/orders/:id/confirm", h.ConfirmOrder)
	rg.POST("/orders/:id/cancel", h.CancelOrder)
	rg.POST("/orders/:id/fulfill", h.FulfillOrder)
	rg.GET("/orders/:id/validation", h.ValidateOrder)
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid order request", err.Error()))
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid customer id", req.CustomerID))
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid product id", item.ProductID))
			return
		}
		items = append(items, domain.OrderItem{
			ProductID: productID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order, err := h.service.CreateOrder(c.Request.Context(), customerID, items,
		middleware.ActingUser(c), middleware.GetRequestID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, h.logger, "order")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// ListOrders handles GET /api/v1/orders?limit=n.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid limit", raw))
			return
		}
		limit = parsed
	}

	orders, err := h.service.GetRecentOrders(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, gin.H{"orders": responses, "count": len(responses)})
}

// ConfirmOrder handles POST /api/v1/orders/:id/confirm.
func (h *OrderHandler) ConfirmOrder(c *gin.Context) {
	orderID, ok := parseID(c, h.logger, "order")
	if !ok {
		return
	}

	order, err := h.service.ConfirmOrder(c.Request.Context(), orderID,
		middleware.ActingUser(c), middleware.GetRequestID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := parseID(c, h.logger, "order")
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid cancel request", err.Error()))
		return
	}

	order, err := h.service.CancelOrder(c.Request.Context(), orderID, req.Reason,
		middleware.ActingUser(c), middleware.GetRequestID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// FulfillOrder handles POST /api/v1/orders/:id/fulfill.
func (h *OrderHandler) FulfillOrder(c *gin.Context) {
	orderID, ok := parseID(c, h.logger, "order")
	if !ok {
		return
	}

	order, err := h.service.MarkFulfilled(c.Request.Context(), orderID, middleware.ActingUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

// ValidateOrder handles GET /api/v1/orders/:id/validation?action=confirm|cancel.
func (h *OrderHandler) ValidateOrder(c *gin.Context) {
	orderID, ok := parseID(c, h.logger, "order")
	if !ok {
		return
	}

	var (
		result domain.ValidationResult
		err    error
	)
	switch action := c.DefaultQuery("action", "confirm"); action {
	case "confirm":
		result, err = h.service.ValidateForConfirmation(c.Request.Context(), orderID)
	case "cancel":
		result, err = h.service.ValidateForCancellation(c.Request.Context(), orderID)
	default:
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid action", action))
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ValidationResponse{Valid: result.Valid, Violations: result.Violations})
}

// parseID parses the :id path parameter as a UUID.
func parseID(c *gin.Context, logger *zap.Logger, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid "+resource+" id", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}
