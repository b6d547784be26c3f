package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestLineTotal_RoundsPerLine(t *testing.T) {
	// 3 x 33.335 = 100.005 -> 100.01 (rounded at the line, not the sum)
	price := decimal.RequireFromString("33.335")
	assert.True(t, LineTotal(price, 3).Equal(decimal.RequireFromString("100.01")))
}

func TestBuildOrder_TotalIsSumOfRoundedLines(t *testing.T) {
	now := time.Now()
	lines := []PricedLine{
		{VariantID: "v1", Quantity: 3, UnitPrice: decimal.RequireFromString("33.335"), Stock: 10},
		{VariantID: "v2", Quantity: 1, UnitPrice: decimal.RequireFromString("0.005"), Stock: 10},
	}

	order, err := BuildOrder("o1", "SM-1", "u1", "ship", "bill", "card", lines, now)
	require.NoError(t, err)

	// 100.01 + 0.01, not round(100.005 + 0.005)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("100.02")),
		"got total %s", order.TotalAmount)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, PaymentStatusPending, order.PaymentStatus)
}

func TestBuildOrder_EmptyCart(t *testing.T) {
	_, err := BuildOrder("o1", "SM-1", "u1", "", "", "card", nil, time.Now())
	if !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
}

func TestBuildOrder_InsufficientStock(t *testing.T) {
	lines := []PricedLine{
		{VariantID: "v1", Quantity: 2, UnitPrice: decimal.NewFromInt(100), Stock: 5},
		{VariantID: "v2", Quantity: 4, UnitPrice: decimal.NewFromInt(50), Stock: 3},
	}

	_, err := BuildOrder("o1", "SM-1", "u1", "", "", "card", lines, time.Now())

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "v2", insufficient.VariantID)
	assert.Equal(t, 3, insufficient.Available)
	assert.Equal(t, 4, insufficient.Requested)
}

func TestBuildOrder_SortsLinesByVariant(t *testing.T) {
	lines := []PricedLine{
		{VariantID: "v2", Quantity: 1, UnitPrice: decimal.NewFromInt(10), Stock: 5},
		{VariantID: "v1", Quantity: 1, UnitPrice: decimal.NewFromInt(10), Stock: 5},
	}

	order, err := BuildOrder("o1", "SM-1", "u1", "", "", "card", lines, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "v1", order.Lines[0].VariantID)
	assert.Equal(t, "v2", order.Lines[1].VariantID)
}

func TestActor_Identity(t *testing.T) {
	user := UserActor("u1")
	session := SessionActor("s1")

	assert.False(t, user.IsAnonymous())
	assert.True(t, session.IsAnonymous())
	assert.False(t, user.IsZero())
	assert.True(t, Actor{}.IsZero())
	assert.Equal(t, "user:u1", user.String())
	assert.Equal(t, "session:s1", session.String())
}

func TestReservation_Live(t *testing.T) {
	now := time.Now()
	res := Reservation{Active: true, ExpiresAt: now.Add(time.Minute)}

	assert.True(t, res.Live(now))
	assert.False(t, res.Live(now.Add(2*time.Minute)), "expired hold must be dead without cleanup")

	res.Active = false
	assert.False(t, res.Live(now), "released hold must be dead even before expiry")
}
