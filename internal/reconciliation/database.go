package reconciliation

import (
	"errors"

	"github.com/marketd/marketplace-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetBalances() ([]types.Balance, error) {
	var balances []types.Balance
	if err := d.db.Find(&balances).Error; err != nil {
		return nil, err
	}
	return balances, nil
}

func (d *Database) GetMovements() ([]types.BalanceMovement, error) {
	var movements []types.BalanceMovement
	if err := d.db.Order("id").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (d *Database) GetListings() ([]types.Listing, error) {
	var listings []types.Listing
	if err := d.db.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (d *Database) GetOrders() ([]types.Order, error) {
	var orders []types.Order
	if err := d.db.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) CreateAuditRun(run *AuditRun) error {
	return d.db.Create(run).Error
}

// LatestAuditRun returns the most recent audit record, nil if none exist.
func (d *Database) LatestAuditRun() (*AuditRun, error) {
	var run AuditRun
	if err := d.db.Order("id DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
