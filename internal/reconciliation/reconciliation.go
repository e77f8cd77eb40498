package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Processor periodically audits the ledger: every balance must equal the
// signed sum of its journal legs, every order's legs must net to zero, and
// no listing may hold negative remaining quantity. Violations are logged
// and persisted as audit runs; the processor never mutates ledger state.
type Processor struct {
	db       *Database
	interval time.Duration
}

func NewProcessor(gormDB *gorm.DB, interval time.Duration) *Processor {
	return &Processor{
		db:       NewDatabase(gormDB),
		interval: interval,
	}
}

// Start begins the audit loop, stopping on context cancellation.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "reconciliation").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting ledger auditor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down ledger auditor")
			return
		case <-ticker.C:
			if _, err := p.RunAudit(); err != nil {
				logger.Error().Err(err).Msg("audit run failed")
			}
		}
	}
}

// RunAudit performs a single audit pass and persists its outcome.
func (p *Processor) RunAudit() (*AuditRun, error) {
	logger := log.With().Str("component", "reconciliation").Logger()

	balances, err := p.db.GetBalances()
	if err != nil {
		return nil, err
	}
	movements, err := p.db.GetMovements()
	if err != nil {
		return nil, err
	}
	listings, err := p.db.GetListings()
	if err != nil {
		return nil, err
	}
	orders, err := p.db.GetOrders()
	if err != nil {
		return nil, err
	}

	var notes []string

	// Balance vs journal: the sum of an identity's signed legs is its
	// balance, and identities with legs must have a balance row.
	journalSums := make(map[string]int64)
	orderSums := make(map[uint]int64)
	orderLegs := make(map[uint]int)
	for _, m := range movements {
		journalSums[m.Identity] += m.Amount
		if m.OrderID != 0 {
			orderSums[m.OrderID] += m.Amount
			orderLegs[m.OrderID]++
		}
	}

	balanceByIdentity := make(map[string]int64)
	for _, b := range balances {
		balanceByIdentity[b.Identity] = b.Amount
		if b.Amount < 0 {
			notes = append(notes, fmt.Sprintf("negative balance for %s: %d", b.Identity, b.Amount))
		}
		if journalSums[b.Identity] != b.Amount {
			notes = append(notes, fmt.Sprintf("balance drift for %s: journal %d, balance %d",
				b.Identity, journalSums[b.Identity], b.Amount))
		}
	}
	for identity, sum := range journalSums {
		if _, exists := balanceByIdentity[identity]; !exists && sum != 0 {
			notes = append(notes, fmt.Sprintf("journal legs without balance row for %s", identity))
		}
	}

	// Order journal: exactly one debit and one credit netting to zero,
	// with the debit matching the frozen total price.
	for _, o := range orders {
		if orderLegs[o.ID] != 2 {
			notes = append(notes, fmt.Sprintf("order %d has %d journal legs", o.ID, orderLegs[o.ID]))
		}
		if orderSums[o.ID] != 0 {
			notes = append(notes, fmt.Sprintf("order %d journal nets to %d", o.ID, orderSums[o.ID]))
		}
	}

	// Listing conservation: quantity sold plus remaining equals the
	// original quantity, unless the seller revised the listing.
	soldByListing := make(map[uint]int64)
	for _, o := range orders {
		soldByListing[o.ListingID] += o.Quantity
	}
	for _, l := range listings {
		if l.Quantity < 0 {
			notes = append(notes, fmt.Sprintf("listing %d oversold: remaining %d", l.ID, l.Quantity))
		}
		if !l.Revised && soldByListing[l.ID]+l.Quantity != l.OriginalQuantity {
			notes = append(notes, fmt.Sprintf("listing %d conservation broken: sold %d + remaining %d != original %d",
				l.ID, soldByListing[l.ID], l.Quantity, l.OriginalQuantity))
		}
	}

	run := &AuditRun{
		Status:          StatusClean,
		BalancesChecked: len(balances),
		ListingsChecked: len(listings),
		OrdersChecked:   len(orders),
		Violations:      len(notes),
		CreatedAt:       time.Now(),
	}
	if len(notes) > 0 {
		run.Status = StatusViolations
		run.Notes = strings.Join(notes, "; ")
		logger.Warn().
			Int("violations", len(notes)).
			Str("notes", run.Notes).
			Msg("ledger audit found violations")
	} else {
		logger.Info().
			Int("balances", len(balances)).
			Int("listings", len(listings)).
			Int("orders", len(orders)).
			Msg("ledger audit clean")
	}

	if err := p.db.CreateAuditRun(run); err != nil {
		return nil, err
	}
	return run, nil
}
