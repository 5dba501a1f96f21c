package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"stocksaga/internal/cache"
	"stocksaga/internal/events"
	"stocksaga/internal/repository"
	"stocksaga/internal/service"
	"stocksaga/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInventoryRouter(t *testing.T) (*gin.Engine, *events.InMemoryPublisher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	publisher := events.NewInMemoryPublisher(nil)
	svc := service.NewInventoryService(store, publisher, zap.NewNop(), 3, 30*time.Minute)
	handler := NewInventoryHandler(svc, cache.NewInMemoryCache(), time.Minute, zap.NewNop())

	router := gin.New()
	router.Use(middleware.RequestID(zap.NewNop()))
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router, publisher
}

func createTestProduct(t *testing.T, router *gin.Engine, quantity, minimum int) ProductResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/products", CreateProductRequest{
		SKU:             "SKU-" + uuid.NewString()[:8],
		Name:            "Widget",
		Description:     "A widget",
		Price:           9.99,
		InitialQuantity: quantity,
		MinimumStock:    minimum,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestInventoryHandler_CreateProduct(t *testing.T) {
	router, _ := newInventoryRouter(t)

	product := createTestProduct(t, router, 100, 10)
	assert.Equal(t, 100, product.Available)
	assert.True(t, product.Active)
	assert.False(t, product.LowStock)
}

func TestInventoryHandler_CreateProduct_DuplicateSKU(t *testing.T) {
	router, _ := newInventoryRouter(t)

	req := CreateProductRequest{SKU: "SKU-DUP", Name: "Widget", InitialQuantity: 5}
	w := doJSON(t, router, http.MethodPost, "/api/v1/products", req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/products", req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestInventoryHandler_GetProduct_UsesCacheAfterFirstRead(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 50, 5)

	for i := 0; i < 2; i++ {
		w := doJSON(t, router, http.MethodGet, "/api/v1/products/"+product.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ProductResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, product.ID, resp.ID)
		assert.Equal(t, 50, resp.Available)
	}
}

func TestInventoryHandler_GetProduct_NotFound(t *testing.T) {
	router, _ := newInventoryRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInventoryHandler_GetProductBySKU(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 50, 5)

	w := doJSON(t, router, http.MethodGet, "/api/v1/products/sku/"+product.SKU, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, product.ID, resp.ID)
}

func TestInventoryHandler_AdjustStock_InvalidatesCache(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 10, 2)

	// Warm the cache.
	w := doJSON(t, router, http.MethodGet, "/api/v1/products/"+product.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/adjust",
		AdjustStockRequest{Quantity: 5, Reason: "cycle count"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The read after the write must see the new quantity, not the cached one.
	w = doJSON(t, router, http.MethodGet, "/api/v1/products/"+product.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 15, resp.Available)
}

func TestInventoryHandler_AdjustStock_InsufficientStock(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 5, 2)

	w := doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/adjust",
		AdjustStockRequest{Quantity: -10, Reason: "oops"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInventoryHandler_ReserveStock(t *testing.T) {
	router, publisher := newInventoryRouter(t)
	product := createTestProduct(t, router, 10, 2)

	w := doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/reserve",
		ReserveStockRequest{OrderID: uuid.NewString(), Quantity: 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 6, resp.Remaining)
	assert.Equal(t, "ACTIVE", resp.Status)
	assert.NotEmpty(t, resp.ReservationID)
	assert.Len(t, publisher.EventsOfType("StockReserved"), 1)
}

func TestInventoryHandler_ReserveStock_Insufficient(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 3, 1)

	w := doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/reserve",
		ReserveStockRequest{OrderID: uuid.NewString(), Quantity: 5})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestInventoryHandler_ReleaseStock(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 10, 2)
	orderID := uuid.NewString()

	w := doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/reserve",
		ReserveStockRequest{OrderID: orderID, Quantity: 4})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/release",
		ReleaseStockRequest{OrderID: orderID, Quantity: 4, Reason: "order cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Available)
}

func TestInventoryHandler_ValidateAvailability(t *testing.T) {
	router, _ := newInventoryRouter(t)
	plenty := createTestProduct(t, router, 100, 10)
	scarce := createTestProduct(t, router, 2, 1)

	w := doJSON(t, router, http.MethodPost, "/api/v1/stock/validate", AvailabilityRequest{
		Items: []AvailabilityItemRequest{
			{ProductID: plenty.ID, Quantity: 50},
			{ProductID: scarce.ID, Quantity: 5},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.AllAvailable)
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.Items[0].Sufficient)
	assert.False(t, resp.Items[1].Sufficient)
}

func TestInventoryHandler_GetLowStockAndReplenishment(t *testing.T) {
	router, _ := newInventoryRouter(t)
	createTestProduct(t, router, 100, 10)
	low := createTestProduct(t, router, 2, 5)

	w := doJSON(t, router, http.MethodGet, "/api/v1/stock/low", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var lowResp struct {
		Products []ProductResponse `json:"products"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lowResp))
	require.Equal(t, 1, lowResp.Count)
	assert.Equal(t, low.ID, lowResp.Products[0].ID)

	w = doJSON(t, router, http.MethodGet, "/api/v1/stock/replenishment", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var recResp struct {
		Recommendations []RecommendationResponse `json:"recommendations"`
		Count           int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recResp))
	require.Equal(t, 1, recResp.Count)
	assert.Equal(t, 8, recResp.Recommendations[0].Suggested)
	assert.Equal(t, "HIGH", recResp.Recommendations[0].Severity)
}

func TestInventoryHandler_DeactivateProduct(t *testing.T) {
	router, _ := newInventoryRouter(t)
	product := createTestProduct(t, router, 10, 2)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/products/"+product.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Active)

	// Reservations against an inactive product are rejected.
	w = doJSON(t, router, http.MethodPost, "/api/v1/products/"+product.ID+"/reserve",
		ReserveStockRequest{OrderID: uuid.NewString(), Quantity: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
