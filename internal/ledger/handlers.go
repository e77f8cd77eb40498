package ledger

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marketd/marketplace-api/internal/registry"
	"github.com/marketd/marketplace-api/pkg/response"
)

// GinHandlers contains HTTP handlers for marketplace endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for marketplace endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateListingHandler handles POST requests to list an item for sale
// Requires a valid JWT token; the token identity is the seller
func (h *GinHandlers) CreateListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sender, ok := senderIdentity(c)
		if !ok {
			return
		}

		var request struct {
			ItemID   uint  `json:"item_id" binding:"required"`
			Price    int64 `json:"price" binding:"gte=0"`
			Quantity int64 `json:"quantity" binding:"gte=0"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.service.CreateListing(sender, request.ItemID, request.Price, request.Quantity)
		if err != nil {
			respondLedgerError(c, err)
			return
		}

		response.Success(c, listing)
	}
}

// UpdateListingHandler handles PUT requests to overwrite a listing's price
// and quantity. Only the listing's seller may update it.
// URL parameter: listing_id
func (h *GinHandlers) UpdateListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sender, ok := senderIdentity(c)
		if !ok {
			return
		}

		listingID, ok := pathID(c, "listing_id")
		if !ok {
			return
		}

		var request struct {
			Price    int64 `json:"price" binding:"gte=0"`
			Quantity int64 `json:"quantity" binding:"gte=0"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		listing, err := h.service.UpdateListing(sender, listingID, request.Price, request.Quantity)
		if err != nil {
			respondLedgerError(c, err)
			return
		}

		response.Success(c, listing)
	}
}

// GetListingHandler handles GET requests for a listing snapshot
// URL parameter: listing_id
func (h *GinHandlers) GetListingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		listingID, ok := pathID(c, "listing_id")
		if !ok {
			return
		}

		listing, err := h.service.GetListing(listingID)
		if err != nil || listing == nil {
			response.NotFound(c, "Listing not found")
			return
		}

		response.Success(c, listing)
	}
}

// CreateOrderHandler handles POST requests to purchase against a listing
// Requires a valid JWT token and idempotency key in headers; the token
// identity is the buyer
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		sender, ok := senderIdentity(c)
		if !ok {
			return
		}

		var request struct {
			ListingID uint  `json:"listing_id" binding:"required"`
			Quantity  int64 `json:"quantity" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.CreateOrder(sender, request.ListingID, request.Quantity, idempotencyKey)
		if err != nil {
			respondLedgerError(c, err)
			return
		}

		response.Success(c, order)
	}
}

// GetOrderHandler handles GET requests for an order snapshot
// URL parameter: order_id
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "order_id")
		if !ok {
			return
		}

		order, err := h.service.GetOrder(orderID)
		if err != nil || order == nil {
			response.NotFound(c, "Order not found")
			return
		}

		response.Success(c, order)
	}
}

// FulfillOrderHandler handles POST requests to fulfill an order
// Requires a valid JWT token; the token identity must be the listing seller
// URL parameter: order_id
func (h *GinHandlers) FulfillOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sender, ok := senderIdentity(c)
		if !ok {
			return
		}

		orderID, ok := pathID(c, "order_id")
		if !ok {
			return
		}

		order, err := h.service.FulfillOrder(sender, orderID)
		if err != nil {
			respondLedgerError(c, err)
			return
		}

		response.Success(c, order)
	}
}

// GetBalanceHandler handles GET requests for an identity's balance
// URL parameter: identity
func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.Param("identity")
		if identity == "" {
			response.BadRequest(c, "Identity is required")
			return
		}

		amount, err := h.service.GetBalance(identity)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"identity": identity, "amount": amount})
	}
}

// CreditBalanceHandler handles internal POST requests to provision funds
// URL parameter: identity
func (h *GinHandlers) CreditBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.Param("identity")
		if identity == "" {
			response.BadRequest(c, "Identity is required")
			return
		}

		var request struct {
			Amount int64 `json:"amount" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		amount, err := h.service.CreditBalance(identity, request.Amount)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"identity": identity, "amount": amount})
	}
}

// senderIdentity pulls the authenticated identity out of the JWT claims set
// by the auth middleware.
func senderIdentity(c *gin.Context) (string, bool) {
	sender := c.GetString("clientID")
	if sender == "" {
		response.Unauthorized(c, "Missing identity in token")
		return "", false
	}
	return sender, true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// respondLedgerError maps ledger and registry failures onto HTTP statuses.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrListingNotFound), errors.Is(err, ErrOrderNotFound),
		errors.Is(err, registry.ErrItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrNotAuthorized):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInsufficientQuantity), errors.Is(err, ErrOrderFulfilled):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		response.PaymentRequired(c, err.Error())
	case errors.Is(err, registry.ErrTransferFailed):
		response.BadGateway(c, err.Error())
	default:
		response.InternalError(c, "An unexpected error occurred")
	}
}
