package domain

import (
	"errors"
	"fmt"
)

var (
	ErrVariantNotFound     = errors.New("variant not found")
	ErrReservationNotFound = errors.New("no active reservation")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCartLineNotFound    = errors.New("cart line not found")
	ErrRecordNotFound      = errors.New("expired cart record not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrAnonymousActor      = errors.New("operation requires an authenticated user")
	ErrForbidden           = errors.New("forbidden")
	ErrCheckoutInProgress  = errors.New("checkout already in progress")
)

// InsufficientStockError reports that a requested quantity exceeds the
// derived availability. It carries the actual available count so the
// client can offer a corrected retry.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

// OrderStateError reports a status transition the order's current
// state does not permit.
type OrderStateError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *OrderStateError) Error() string {
	return fmt.Sprintf("order %s: cannot transition from %s to %s", e.OrderID, e.From, e.To)
}
