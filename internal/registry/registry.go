package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrItemNotFound   = errors.New("item not registered")
	ErrItemExists     = errors.New("item already registered")
	ErrTransferFailed = errors.New("ownership transfer failed")
)

// Registry is the external ownership system of record consumed by the
// ledger. GetOwner is a side-effect-free query; TransferOwnership reassigns
// the item and may fail, in which case the caller must not proceed.
type Registry interface {
	GetOwner(itemID uint) (string, error)
	TransferOwnership(itemID uint, newOwner string) error
}

// Item is a registered supply chain item and its current owner.
type Item struct {
	ItemID uint   `json:"item_id"`
	Owner  string `json:"current_owner"`
}

// SupplyChain is an in-process ownership registry. It stands in for the
// external supply chain service during development, simulation and tests.
type SupplyChain struct {
	mu      sync.RWMutex
	items   map[uint]*Item
	failing map[uint]bool
}

// NewSupplyChain creates an empty in-process registry.
func NewSupplyChain() *SupplyChain {
	return &SupplyChain{
		items:   make(map[uint]*Item),
		failing: make(map[uint]bool),
	}
}

// RegisterItem records a new item with its initial owner.
func (s *SupplyChain) RegisterItem(itemID uint, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[itemID]; exists {
		return ErrItemExists
	}
	s.items[itemID] = &Item{ItemID: itemID, Owner: owner}

	log.Info().
		Uint("item_id", itemID).
		Str("owner", owner).
		Str("component", "supply_chain").
		Msg("item registered")

	return nil
}

// GetOwner returns the current owner of an item.
func (s *SupplyChain) GetOwner(itemID uint) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return "", ErrItemNotFound
	}
	return item.Owner, nil
}

// GetItem returns a snapshot of a registered item.
func (s *SupplyChain) GetItem(itemID uint) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[itemID]
	if !exists {
		return nil, ErrItemNotFound
	}
	snapshot := *item
	return &snapshot, nil
}

// TransferOwnership reassigns an item to a new owner.
func (s *SupplyChain) TransferOwnership(itemID uint, newOwner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.With().
		Uint("item_id", itemID).
		Str("new_owner", newOwner).
		Str("component", "supply_chain").
		Logger()

	item, exists := s.items[itemID]
	if !exists {
		logger.Warn().Msg("transfer requested for unregistered item")
		return ErrItemNotFound
	}

	if s.failing[itemID] {
		logger.Warn().Msg("transfer rejected by registry")
		return fmt.Errorf("%w: item %d", ErrTransferFailed, itemID)
	}

	previous := item.Owner
	item.Owner = newOwner

	logger.Info().Str("previous_owner", previous).Msg("ownership transferred")
	return nil
}

// SetTransferFailure toggles transfer failure injection for an item.
func (s *SupplyChain) SetTransferFailure(itemID uint, failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[itemID] = failing
}
