package handlers

import (
	"net/http"
	"time"

	"stocksaga/internal/cache"
	"stocksaga/internal/service"
	"stocksaga/pkg/errors"
	"stocksaga/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InventoryHandler exposes the product catalog and stock operations over
// HTTP. Catalog reads go through the cache; every write invalidates the
// product entries.
type InventoryHandler struct {
	service  *service.InventoryService
	cache    cache.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(service *service.InventoryService, c cache.Cache, cacheTTL time.Duration, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		service:  service,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// RegisterRoutes mounts the inventory routes on the given group.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/products", h.CreateProduct)
	rg.GET("/products", h.ListProducts)
	rg.GET("/products/:id", h.GetProduct)
	rg.GET("/products/sku/:sku", h.GetProductBySKU)
	rg.PUT("/products/:id", h.UpdateProduct)
	rg.DELETE("/products/:id", h.DeactivateProduct)
	rg.POST("/products/:id/adjust", h.AdjustStock)
	rg.POST("/products/:id/reserve", h.ReserveStock)
	rg.POST("/products/:id/release", h.ReleaseStock)
	rg.POST("/stock/validate", h.ValidateAvailability)
	rg.GET("/stock/low", h.GetLowStock)
	rg.GET("/stock/replenishment", h.GetReplenishment)
}

// CreateProduct handles POST /api/v1/products.
func (h *InventoryHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid product request", err.Error()))
		return
	}

	product, err := h.service.CreateProduct(c.Request.Context(),
		req.SKU, req.Name, req.Description, req.Price, req.InitialQuantity, req.MinimumStock,
		middleware.ActingUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusCreated, toProductResponse(product))
}

// GetProduct handles GET /api/v1/products/:id.
func (h *InventoryHandler) GetProduct(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	key := "product:" + productID.String()
	var cached ProductResponse
	if err := cache.GetJSON(c.Request.Context(), h.cache, key, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	product, err := h.service.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := toProductResponse(product)
	if err := cache.SetJSON(c.Request.Context(), h.cache, key, response, h.cacheTTL); err != nil {
		h.logger.Debug("Failed to cache product", zap.Error(err))
	}
	c.JSON(http.StatusOK, response)
}

// GetProductBySKU handles GET /api/v1/products/sku/:sku.
func (h *InventoryHandler) GetProductBySKU(c *gin.Context) {
	sku := c.Param("sku")

	key := "product:sku:" + sku
	var cached ProductResponse
	if err := cache.GetJSON(c.Request.Context(), h.cache, key, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	product, err := h.service.GetProductBySKU(c.Request.Context(), sku)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := toProductResponse(product)
	if err := cache.SetJSON(c.Request.Context(), h.cache, key, response, h.cacheTTL); err != nil {
		h.logger.Debug("Failed to cache product", zap.Error(err))
	}
	c.JSON(http.StatusOK, response)
}

// ListProducts handles GET /api/v1/products.
func (h *InventoryHandler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		responses = append(responses, toProductResponse(product))
	}
	c.JSON(http.StatusOK, gin.H{"products": responses, "count": len(responses)})
}

// UpdateProduct handles PUT /api/v1/products/:id.
func (h *InventoryHandler) UpdateProduct(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid product request", err.Error()))
		return
	}

	product, err := h.service.UpdateProduct(c.Request.Context(), productID,
		req.Name, req.Description, req.Price, req.MinimumStock, middleware.ActingUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusOK, toProductResponse(product))
}

// DeactivateProduct handles DELETE /api/v1/products/:id.
func (h *InventoryHandler) DeactivateProduct(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	product, err := h.service.DeactivateProduct(c.Request.Context(), productID, middleware.ActingUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusOK, toProductResponse(product))
}

// AdjustStock handles POST /api/v1/products/:id/adjust.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid adjustment request", err.Error()))
		return
	}

	product, err := h.service.AdjustStock(c.Request.Context(), productID, req.Quantity, req.Reason, middleware.ActingUser(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusOK, toProductResponse(product))
}

// ReserveStock handles POST /api/v1/products/:id/reserve.
func (h *InventoryHandler) ReserveStock(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	var req ReserveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid reservation request", err.Error()))
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid order id", req.OrderID))
		return
	}

	outcome, err := h.service.ReserveStock(c.Request.Context(), orderID, productID, req.Quantity,
		middleware.ActingUser(c), middleware.GetRequestID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := ReservationResponse{
		Success:   outcome.Success,
		Message:   outcome.Message,
		Remaining: outcome.Remaining,
	}
	if outcome.Reservation != nil {
		response.ReservationID = outcome.Reservation.ID.String()
		response.Status = string(outcome.Reservation.Status)
	}

	if !outcome.Success {
		c.JSON(http.StatusUnprocessableEntity, response)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusOK, response)
}

// ReleaseStock handles POST /api/v1/products/:id/release.
func (h *InventoryHandler) ReleaseStock(c *gin.Context) {
	productID, ok := parseID(c, h.logger, "product")
	if !ok {
		return
	}

	var req ReleaseStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid release request", err.Error()))
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid order id", req.OrderID))
		return
	}

	product, err := h.service.ReleaseStock(c.Request.Context(), orderID, productID, req.Quantity,
		req.Reason, middleware.ActingUser(c), middleware.GetRequestID(c), false)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.invalidateProducts(c)
	c.JSON(http.StatusOK, toProductResponse(product))
}

// ValidateAvailability handles POST /api/v1/stock/validate.
func (h *InventoryHandler) ValidateAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid availability request", err.Error()))
		return
	}

	requests := make([]service.StockRequest, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.NewInvalidRequest("invalid product id", item.ProductID))
			return
		}
		requests = append(requests, service.StockRequest{ProductID: productID, Quantity: item.Quantity})
	}

	report, err := h.service.ValidateStockAvailability(c.Request.Context(), requests)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, toAvailabilityResponse(report))
}

// GetLowStock handles GET /api/v1/stock/low.
func (h *InventoryHandler) GetLowStock(c *gin.Context) {
	products, err := h.service.GetLowStockProducts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		responses = append(responses, toProductResponse(product))
	}
	c.JSON(http.StatusOK, gin.H{"products": responses, "count": len(responses)})
}

// GetReplenishment handles GET /api/v1/stock/replenishment.
func (h *InventoryHandler) GetReplenishment(c *gin.Context) {
	recommendations, err := h.service.GetReplenishmentRecommendations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	responses := make([]RecommendationResponse, 0, len(recommendations))
	for _, rec := range recommendations {
		responses = append(responses, RecommendationResponse{
			ProductID: rec.ProductID.String(),
			SKU:       rec.SKU,
			Name:      rec.Name,
			Current:   rec.Current,
			Minimum:   rec.Minimum,
			Suggested: rec.Suggested,
			Severity:  string(rec.Severity),
		})
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": responses, "count": len(responses)})
}

func (h *InventoryHandler) invalidateProducts(c *gin.Context) {
	if err := h.cache.DeleteByPattern(c.Request.Context(), "product*"); err != nil {
		h.logger.Debug("Failed to invalidate product cache", zap.Error(err))
	}
}
