package migrations

import (
	"github.com/marketd/marketplace-api/internal/types"
	"gorm.io/gorm"
)

func AddListingOriginalQuantity(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Listing{}); err != nil {
		return err
	}

	// Backfill listings created before the column existed. Remaining
	// quantity is the best available approximation for those rows.
	return db.Model(&types.Listing{}).
		Where("original_quantity = 0 AND quantity > 0").
		Update("original_quantity", gorm.Expr("quantity")).Error
}
