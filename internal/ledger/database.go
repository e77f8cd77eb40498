package ledger

import (
	"errors"
	"time"

	"github.com/marketd/marketplace-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateListing(listing *types.Listing) error {
	return d.db.Create(listing).Error
}

func (d *Database) GetListing(listingID uint) (*types.Listing, error) {
	var listing types.Listing
	if err := d.db.First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

func (d *Database) SaveListing(listing *types.Listing) error {
	return d.db.Save(listing).Error
}

func (d *Database) GetOrder(orderID uint) (*types.Order, error) {
	var order types.Order
	if err := d.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkOrderFulfilled transitions an order to FULFILLED. Called only after
// the external ownership transfer has succeeded.
func (d *Database) MarkOrderFulfilled(order *types.Order) error {
	order.Status = types.OrderStatusFulfilled
	order.UpdatedAt = time.Now()
	return d.db.Save(order).Error
}

// GetBalance returns an identity's balance, zero if no row exists.
func (d *Database) GetBalance(identity string) (int64, error) {
	var balance types.Balance
	if err := d.db.Where("identity = ?", identity).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Amount, nil
}

// CreditBalance provisions funds for an identity and journals the credit.
func (d *Database) CreditBalance(identity string, amount int64) (int64, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	balance, err := adjustBalance(tx, identity, amount)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	movement := types.BalanceMovement{
		Identity:  identity,
		Amount:    amount,
		Kind:      types.MovementProvision,
		CreatedAt: time.Now(),
	}
	if err := tx.Create(&movement).Error; err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateOrderWithTransfer applies order creation as one atomic unit: the
// quantity and funds checks, the buyer debit, the seller credit, the journal
// legs, the listing decrement and the order row either all commit or none
// do. The returned errors from the check phase leave the database untouched.
func (d *Database) CreateOrderWithTransfer(buyer string, listingID uint, quantity int64, idempotencyKey string) (*types.Order, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var listing types.Listing
	if err := tx.First(&listing, listingID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}

	if quantity > listing.Quantity {
		tx.Rollback()
		return nil, ErrInsufficientQuantity
	}

	totalPrice := listing.Price * quantity

	buyerBalance, err := balanceAmount(tx, buyer)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if buyerBalance < totalPrice {
		tx.Rollback()
		return nil, ErrInsufficientFunds
	}

	if _, err := adjustBalance(tx, buyer, -totalPrice); err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := adjustBalance(tx, listing.Seller, totalPrice); err != nil {
		tx.Rollback()
		return nil, err
	}

	listing.Quantity -= quantity
	listing.UpdatedAt = time.Now()
	if err := tx.Save(&listing).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order := &types.Order{
		Buyer:      buyer,
		ListingID:  listingID,
		Quantity:   quantity,
		TotalPrice: totalPrice,
		Status:     types.OrderStatusCreated,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	movements := []types.BalanceMovement{
		{
			OrderID:   order.ID,
			Identity:  buyer,
			Amount:    -totalPrice,
			Kind:      types.MovementDebit,
			CreatedAt: time.Now(),
		},
		{
			OrderID:   order.ID,
			Identity:  listing.Seller,
			Amount:    totalPrice,
			Kind:      types.MovementCredit,
			CreatedAt: time.Now(),
		},
	}
	if err := tx.Create(&movements).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if idempotencyKey != "" {
		record := IdempotencyRecord{
			IdempotencyKey: idempotencyKey,
			ResourceID:     order.ID,
			ResourceType:   "order",
			ExpiresAt:      time.Now().Add(24 * time.Hour),
		}
		if err := tx.Create(&record).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return order, nil
}

// GetIdempotencyRecord retrieves an idempotency record by key, nil if absent
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func balanceAmount(tx *gorm.DB, identity string) (int64, error) {
	var balance types.Balance
	if err := tx.Where("identity = ?", identity).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Amount, nil
}

// adjustBalance applies a signed delta, lazily creating the balance row.
func adjustBalance(tx *gorm.DB, identity string, delta int64) (int64, error) {
	var balance types.Balance
	err := tx.Where("identity = ?", identity).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = types.Balance{
			Identity:  identity,
			Amount:    delta,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := tx.Create(&balance).Error; err != nil {
			return 0, err
		}
		return balance.Amount, nil
	}
	if err != nil {
		return 0, err
	}

	balance.Amount += delta
	balance.UpdatedAt = time.Now()
	if err := tx.Save(&balance).Error; err != nil {
		return 0, err
	}
	return balance.Amount, nil
}
