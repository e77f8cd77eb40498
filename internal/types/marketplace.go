package types

import "time"

// Listing statuses
const (
	ListingStatusActive = "ACTIVE"
)

// Order statuses
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusFulfilled = "FULFILLED"
)

// Balance movement kinds
const (
	MovementDebit     = "DEBIT"
	MovementCredit    = "CREDIT"
	MovementProvision = "PROVISION"
)

// Listing is a seller's offer to sell a quantity of a registry item at a
// unit price. Listing ids are dense sqlite AUTOINCREMENT integers starting
// at 1.
type Listing struct {
	ID               uint      `gorm:"primaryKey" json:"listing_id"`
	Seller           string    `gorm:"index" json:"seller"`
	ItemID           uint      `json:"item_id"`
	Price            int64     `json:"price"`
	Quantity         int64     `json:"quantity"`
	OriginalQuantity int64     `json:"original_quantity"`
	Revised          bool      `json:"revised"`
	Status           string    `json:"status"` // ACTIVE
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Order is a buyer's commitment against a listing. TotalPrice is frozen at
// creation and never recomputed from the listing.
type Order struct {
	ID         uint      `gorm:"primaryKey" json:"order_id"`
	Buyer      string    `gorm:"index" json:"buyer"`
	ListingID  uint      `gorm:"index" json:"listing_id"`
	Quantity   int64     `json:"quantity"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"` // CREATED, FULFILLED
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Balance is an identity's current funds. Identities without a row hold an
// implicit zero balance.
type Balance struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Identity  string    `gorm:"uniqueIndex" json:"identity"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalanceMovement is one signed leg of a transfer. Order transfers write a
// DEBIT and a CREDIT leg in the same transaction as the order row;
// provisioning credits carry OrderID zero.
type BalanceMovement struct {
	ID        uint      `gorm:"primaryKey" json:"movement_id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	Identity  string    `gorm:"index" json:"identity"`
	Amount    int64     `json:"amount"`
	Kind      string    `json:"kind"` // DEBIT, CREDIT, PROVISION
	CreatedAt time.Time `json:"created_at"`
}
