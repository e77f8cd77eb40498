package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/marketd/marketplace-api/internal/registry"
	"github.com/marketd/marketplace-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the marketplace ledger. It owns listings, orders and balances
// and consults the ownership registry for listing authorization and order
// fulfillment. A single mutex serializes the mutating operations; reads go
// straight to the database and return snapshot copies.
type Service struct {
	db       *Database
	registry registry.Registry
	mu       sync.Mutex
}

// NewService creates a new ledger service with the given database
// connection and ownership registry
func NewService(gormDB *gorm.DB, reg registry.Registry) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		registry: reg,
	}
}

// CreateListing lists an item for sale. Only the item's current owner, as
// reported by the ownership registry at call time, may list it.
func (s *Service) CreateListing(sender string, itemID uint, price, quantity int64) (*types.Listing, error) {
	logger := log.With().
		Str("sender", sender).
		Uint("item_id", itemID).
		Str("service", "ledger").
		Logger()

	owner, err := s.registry.GetOwner(itemID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to resolve item owner")
		return nil, fmt.Errorf("resolve item owner: %w", err)
	}
	if owner != sender {
		logger.Warn().Str("owner", owner).Msg("listing rejected, sender does not own item")
		return nil, ErrNotAuthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	listing := &types.Listing{
		Seller:           sender,
		ItemID:           itemID,
		Price:            price,
		Quantity:         quantity,
		OriginalQuantity: quantity,
		Status:           types.ListingStatusActive,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := s.db.CreateListing(listing); err != nil {
		return nil, err
	}

	logger.Info().
		Uint("listing_id", listing.ID).
		Int64("price", price).
		Int64("quantity", quantity).
		Msg("listing created")

	return listing, nil
}

// UpdateListing overwrites a listing's price and quantity. The overwrite is
// unconditional: new_quantity is not checked against units already sold,
// matching the reference marketplace behavior. The reconciliation auditor
// skips conservation checks for revised listings.
func (s *Service) UpdateListing(sender string, listingID uint, price, quantity int64) (*types.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.db.GetListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, ErrListingNotFound
	}
	if listing.Seller != sender {
		return nil, ErrNotAuthorized
	}

	listing.Price = price
	listing.Quantity = quantity
	listing.Revised = true
	listing.UpdatedAt = time.Now()
	if err := s.db.SaveListing(listing); err != nil {
		return nil, err
	}

	log.Info().
		Uint("listing_id", listingID).
		Int64("price", price).
		Int64("quantity", quantity).
		Str("service", "ledger").
		Msg("listing updated")

	return listing, nil
}

// CreateOrder purchases quantity against a listing, transferring the frozen
// total price from the buyer to the seller as one atomic unit with the
// order row and the listing decrement. An unexpired idempotency key returns
// the previously created order instead of re-applying the transfer.
func (s *Service) CreateOrder(sender string, listingID uint, quantity int64, idempotencyKey string) (*types.Order, error) {
	if idempotencyKey != "" {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err != nil {
			return nil, err
		}
		if record != nil && record.ExpiresAt.After(time.Now()) {
			existing, err := s.db.GetOrder(record.ResourceID)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				return nil, ErrOrderNotFound
			}
			return existing, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.db.CreateOrderWithTransfer(sender, listingID, quantity, idempotencyKey)
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("order_id", order.ID).
		Uint("listing_id", listingID).
		Str("buyer", sender).
		Int64("quantity", quantity).
		Int64("total_price", order.TotalPrice).
		Str("service", "ledger").
		Msg("order created")

	return order, nil
}

// FulfillOrder triggers the external ownership transfer for an order and
// marks it fulfilled. Only the listing's seller may fulfill. A failed
// registry transfer leaves the order in CREATED; an already fulfilled order
// is rejected without touching the registry again.
func (s *Service) FulfillOrder(sender string, orderID uint) (*types.Order, error) {
	logger := log.With().
		Str("sender", sender).
		Uint("order_id", orderID).
		Str("service", "ledger").
		Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	listing, err := s.db.GetListing(order.ListingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		// Orders always reference a stored listing; a miss here means the
		// ledger state itself is corrupt.
		return nil, fmt.Errorf("listing %d missing for order %d", order.ListingID, orderID)
	}
	if listing.Seller != sender {
		return nil, ErrNotAuthorized
	}
	if order.Status == types.OrderStatusFulfilled {
		return nil, ErrOrderFulfilled
	}

	if err := s.registry.TransferOwnership(listing.ItemID, order.Buyer); err != nil {
		logger.Error().Err(err).Msg("ownership transfer failed, order stays created")
		return nil, fmt.Errorf("ownership transfer: %w", err)
	}

	if err := s.db.MarkOrderFulfilled(order); err != nil {
		return nil, err
	}

	logger.Info().
		Uint("item_id", listing.ItemID).
		Str("buyer", order.Buyer).
		Msg("order fulfilled, ownership transferred")

	return order, nil
}

// GetListing retrieves a listing snapshot, nil if absent.
func (s *Service) GetListing(listingID uint) (*types.Listing, error) {
	return s.db.GetListing(listingID)
}

// GetOrder retrieves an order snapshot, nil if absent.
func (s *Service) GetOrder(orderID uint) (*types.Order, error) {
	return s.db.GetOrder(orderID)
}

// GetBalance returns an identity's balance, zero for unknown identities.
func (s *Service) GetBalance(identity string) (int64, error) {
	return s.db.GetBalance(identity)
}

// CreditBalance provisions funds for an identity and returns the new
// balance. Wallet top-ups are a boundary operation, not part of the
// marketplace state machine.
func (s *Service) CreditBalance(identity string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.CreditBalance(identity, amount)
}
