package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrEmptyOrder      = errors.New("order has no items")

	// ErrProductInUse blocks deleting a product still referenced by a
	// pending or paid order.
	ErrProductInUse = errors.New("product is referenced by active orders")

	// ErrTxConflict is returned after lock-contention retries are exhausted.
	// Transient; callers may retry the whole operation.
	ErrTxConflict = errors.New("transaction conflict, retry")
)

// InsufficientStockError identifies the first product whose available stock
// could not cover the requested quantity. The whole reservation is aborted,
// no partial decrement happens.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// InvalidStateError reports a lifecycle event attempted on an order whose
// status forbids it.
type InvalidStateError struct {
	Status Status
	Event  Event
	Reason string
}

func (e InvalidStateError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot %s an order in status %s", e.Event, e.Status)
}
