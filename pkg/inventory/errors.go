package inventory

import (
	"errors"
	"fmt"
)

// Common errors returned by the ledger.
var (
	// ErrOutOfStock is returned when an item's quantity is zero.
	ErrOutOfStock = errors.New("item out of stock")

	// ErrItemNotFound is returned when the item hash does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrConflictExhausted is returned when a bounded sell gives up after
	// too many watch conflicts. Only possible with Config.MaxRetries > 0.
	ErrConflictExhausted = errors.New("sell conflict retries exhausted")
)

// NotEnoughStockError is the business-rule failure for a sell that requests
// more than is available. It is terminal and never retried.
type NotEnoughStockError struct {
	ItemID    string
	Requested int64
	Available int64
}

// Error implements the error interface.
func (e *NotEnoughStockError) Error() string {
	return fmt.Sprintf("not enough of %s in stock: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// IsBusinessError reports whether err is a terminal stock rule violation
// rather than a store fault.
func IsBusinessError(err error) bool {
	var nes *NotEnoughStockError
	return errors.Is(err, ErrOutOfStock) || errors.As(err, &nes)
}
