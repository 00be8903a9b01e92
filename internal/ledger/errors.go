package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound: the product has no inventory record.
	ErrProductNotFound = errors.New("product inventory not found")

	// ErrInsufficientStock: requested quantity exceeds total available.
	// Checked before any row is touched; an order failing on one line
	// leaves all lines untouched.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInventoryInconsistency: the alloted trays could not account for
	// the remainder even though total_qty said they must. Indicates the
	// counters have drifted; the enclosing transaction is rolled back.
	ErrInventoryInconsistency = errors.New("inventory inconsistency")

	// ErrConcurrencyConflict: the database aborted the transaction due to
	// a serialization failure or deadlock on a contended product row.
	// Safe for the caller to retry the whole request.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// InsufficientStockError identifies the offending line item so callers
// can tell the user which product fell short. errors.Is against
// ErrInsufficientStock still matches.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: product %s requested %d available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
