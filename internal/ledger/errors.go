package ledger

import "errors"

// Operation failures are pure: an operation returning one of these has not
// mutated any ledger state.
var (
	ErrListingNotFound      = errors.New("listing not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNotAuthorized        = errors.New("sender is not authorized")
	ErrInsufficientQuantity = errors.New("insufficient listing quantity")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrOrderFulfilled       = errors.New("order already fulfilled")
)
