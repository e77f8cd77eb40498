package registry

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/marketd/marketplace-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the internal item registration
// endpoints used to seed the in-process registry.
type GinHandlers struct {
	supply *SupplyChain
}

// NewGinHandlers creates a new set of HTTP handlers for registry endpoints
func NewGinHandlers(supply *SupplyChain) *GinHandlers {
	return &GinHandlers{
		supply: supply,
	}
}

// RegisterItemHandler handles POST requests to register a supply chain item
// Request body should contain the item ID and its initial owner
func (h *GinHandlers) RegisterItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			ItemID uint   `json:"item_id" binding:"required"`
			Owner  string `json:"owner" binding:"required"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.supply.RegisterItem(request.ItemID, request.Owner); err != nil {
			if errors.Is(err, ErrItemExists) {
				response.Conflict(c, "Item already registered")
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		item, err := h.supply.GetItem(request.ItemID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, item)
	}
}

// GetItemHandler handles GET requests for a registered item
// URL parameter: item_id
func (h *GinHandlers) GetItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, err := strconv.ParseUint(c.Param("item_id"), 10, 32)
		if err != nil {
			response.BadRequest(c, "Invalid item ID")
			return
		}

		item, err := h.supply.GetItem(uint(itemID))
		if err != nil {
			response.NotFound(c, "Item not found")
			return
		}

		response.Success(c, item)
	}
}
