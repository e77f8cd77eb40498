package reconciliation

import "time"

const (
	StatusClean      = "CLEAN"
	StatusViolations = "VIOLATIONS"
)

// AuditRun records one pass of the ledger auditor.
type AuditRun struct {
	ID              uint      `gorm:"primaryKey" json:"audit_run_id"`
	Status          string    `json:"status"` // CLEAN, VIOLATIONS
	BalancesChecked int       `json:"balances_checked"`
	ListingsChecked int       `json:"listings_checked"`
	OrdersChecked   int       `json:"orders_checked"`
	Violations      int       `json:"violations"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
