package migrations

import (
	"github.com/marketd/marketplace-api/internal/types"
	"gorm.io/gorm"
)

func AddBalanceMovements(db *gorm.DB) error {
	// The journal table arrived after balances already existed in early
	// deployments, so it gets its own migration step.
	if err := db.AutoMigrate(&types.BalanceMovement{}); err != nil {
		return err
	}

	return nil
}
