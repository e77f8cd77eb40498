package database

import (
	"fmt"

	"github.com/marketd/marketplace-api/internal/database/migrations"
	"github.com/marketd/marketplace-api/internal/ledger"
	"github.com/marketd/marketplace-api/internal/reconciliation"
	"github.com/marketd/marketplace-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddBalanceMovements(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddListingOriginalQuantity(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.Balance{},
		&ledger.IdempotencyRecord{},
		&reconciliation.AuditRun{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
