package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/marketd/marketplace-api/internal/auth"
	"github.com/marketd/marketplace-api/internal/registry"
	"github.com/marketd/marketplace-api/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type apiFixture struct {
	router      *gin.Engine
	sellerToken string
	buyerToken  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	supply := registry.NewSupplyChain()
	require.NoError(t, supply.RegisterItem(1, seller))

	svc := NewService(newTestDB(t), supply)
	_, err := svc.CreditBalance(seller, 10000)
	require.NoError(t, err)
	_, err = svc.CreditBalance(buyer, 5000)
	require.NoError(t, err)

	authService := auth.NewService(testSecret)
	authService.RegisterAPICredentials(seller, "seller-secret")
	authService.RegisterAPICredentials(buyer, "buyer-secret")

	handlers := NewGinHandlers(svc)

	router := gin.New()
	v1 := router.Group("/api/v1")
	listings := v1.Group("/listings")
	listings.Use(middleware.JWTAuth(testSecret))
	listings.POST("", handlers.CreateListingHandler())
	listings.PUT("/:listing_id", handlers.UpdateListingHandler())
	listings.GET("/:listing_id", handlers.GetListingHandler())

	orders := v1.Group("/orders")
	orders.Use(middleware.JWTAuth(testSecret))
	orders.POST("", handlers.CreateOrderHandler())
	orders.GET("/:order_id", handlers.GetOrderHandler())
	orders.POST("/:order_id/fulfill", handlers.FulfillOrderHandler())

	balances := v1.Group("/balances")
	balances.Use(middleware.JWTAuth(testSecret))
	balances.GET("/:identity", handlers.GetBalanceHandler())

	sellerToken, err := authService.GenerateToken(auth.Credentials{APIKey: seller, APISecret: "seller-secret"})
	require.NoError(t, err)
	buyerToken, err := authService.GenerateToken(auth.Credentials{APIKey: buyer, APISecret: "buyer-secret"})
	require.NoError(t, err)

	return &apiFixture{
		router:      router,
		sellerToken: sellerToken.Token,
		buyerToken:  buyerToken.Token,
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, payload interface{}, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer = bytes.NewBuffer(nil)
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createListing(t *testing.T) {
	t.Helper()
	w := f.do(t, "POST", "/api/v1/listings", f.sellerToken,
		gin.H{"item_id": 1, "price": 100, "quantity": 10}, "")
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateListingHandler(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/listings", f.sellerToken,
		gin.H{"item_id": 1, "price": 100, "quantity": 10}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			ListingID uint   `json:"listing_id"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, uint(1), result.Data.ListingID)
	assert.Equal(t, "ACTIVE", result.Data.Status)
}

func TestCreateListingHandler_NotOwner(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/listings", f.buyerToken,
		gin.H{"item_id": 1, "price": 100, "quantity": 10}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateListingHandler_NoToken(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/listings", "",
		gin.H{"item_id": 1, "price": 100, "quantity": 10}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrderHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 1, "quantity": 2}, "order-key-1")
	require.Equal(t, http.StatusCreated, w.Code)

	var result struct {
		Data struct {
			OrderID    uint  `json:"order_id"`
			TotalPrice int64 `json:"total_price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, uint(1), result.Data.OrderID)
	assert.Equal(t, int64(200), result.Data.TotalPrice)

	// Balance endpoint reflects the transfer
	w = f.do(t, "GET", "/api/v1/balances/"+seller, f.sellerToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var balance struct {
		Data struct {
			Amount int64 `json:"amount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(10200), balance.Data.Amount)
}

func TestCreateOrderHandler_MissingIdempotencyKey(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 1, "quantity": 2}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderHandler_InsufficientQuantity(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 1, "quantity": 15}, "order-key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateOrderHandler_InsufficientFunds(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/listings", f.sellerToken,
		gin.H{"item_id": 1, "price": 1000, "quantity": 10}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 1, "quantity": 6}, "order-key-1")
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestCreateOrderHandler_UnknownListing(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 42, "quantity": 1}, "order-key-1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFulfillOrderHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "POST", "/api/v1/orders", f.buyerToken,
		gin.H{"listing_id": 1, "quantity": 2}, "order-key-1")
	require.Equal(t, http.StatusCreated, w.Code)

	// Buyer cannot fulfill
	w = f.do(t, "POST", "/api/v1/orders/1/fulfill", f.buyerToken, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Seller can
	w = f.do(t, "POST", "/api/v1/orders/1/fulfill", f.sellerToken, nil, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var result struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "FULFILLED", result.Data.Status)

	// A second fulfill is rejected
	w = f.do(t, "POST", "/api/v1/orders/1/fulfill", f.sellerToken, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetListingHandler_NotFound(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, "GET", "/api/v1/listings/42", f.buyerToken, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateListingHandler(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "PUT", "/api/v1/listings/1", f.sellerToken,
		gin.H{"price": 120, "quantity": 8}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "GET", "/api/v1/listings/1", f.buyerToken, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Data struct {
			Price    int64 `json:"price"`
			Quantity int64 `json:"quantity"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(120), result.Data.Price)
	assert.Equal(t, int64(8), result.Data.Quantity)
}

func TestUpdateListingHandler_NotSeller(t *testing.T) {
	f := newAPIFixture(t)
	f.createListing(t)

	w := f.do(t, "PUT", "/api/v1/listings/1", f.buyerToken,
		gin.H{"price": 1, "quantity": 1}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetOrderHandler_InvalidID(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/v1/orders/abc", "/api/v1/orders/0"} {
		w := f.do(t, "GET", path, f.buyerToken, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("path %s", path))
	}
}
