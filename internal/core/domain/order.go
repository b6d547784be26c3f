package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// next step in the fulfilment chain; cancellation is handled separately
var orderStatusNext = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusConfirmed,
	OrderStatusConfirmed:  OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Cancellable reports whether an order in this status may still be
// cancelled. Stock is only ever restored from these states.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CanTransitionTo reports whether the fulfilment chain permits moving
// from s to next. The chain is strictly forward; cancellation is
// allowed only from cancellable states, and cancelled/delivered are
// terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == OrderStatusCancelled {
		return s.Cancellable()
	}
	return orderStatusNext[s] == next
}

// OrderLine snapshots quantity and unit price at the moment of
// purchase. Lines are immutable once the order is committed.
type OrderLine struct {
	ID        string
	OrderID   string
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	TotalAmount     decimal.Decimal
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Lines           []OrderLine
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PricedLine is a cart line joined with the variant's ledger state,
// read under lock inside the checkout transaction.
type PricedLine struct {
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	Stock     int
}

// LineTotal computes quantity x unit price rounded to currency
// precision. Each line is rounded independently before summing so the
// order total never drifts from the sum of its displayed lines.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// BuildOrder assembles an immutable order from priced cart lines. It
// verifies every line against the locked ledger stock and fails with
// InsufficientStockError on the first shortfall, so callers can roll
// the surrounding transaction back without partial effects. Lines are
// sorted by variant id to keep lock acquisition order deterministic
// for callers that iterate the result.
func BuildOrder(id, orderNumber, userID, shippingAddr, billingAddr, paymentMethod string, lines []PricedLine, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	sorted := make([]PricedLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].VariantID < sorted[j].VariantID })

	order := &Order{
		ID:              id,
		OrderNumber:     orderNumber,
		UserID:          userID,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		TotalAmount:     decimal.Zero,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
		PaymentMethod:   paymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for i, line := range sorted {
		if line.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if line.Stock < line.Quantity {
			return nil, &InsufficientStockError{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: line.Stock,
			}
		}
		total := LineTotal(line.UnitPrice, line.Quantity)
		order.Lines = append(order.Lines, OrderLine{
			ID:        fmt.Sprintf("%s-%d", id, i+1),
			OrderID:   id,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: total,
		})
		order.TotalAmount = order.TotalAmount.Add(total)
	}

	return order, nil
}
