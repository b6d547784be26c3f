package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

func TestAvailability_AvailableStock(t *testing.T) {
	store := newTestStore(10)
	mgr, clock := newTestManager(store)
	availability := NewAvailability(store)
	availability.now = clock.Now

	got, err := availability.AvailableStock(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 10, got)

	_, err = mgr.Reserve(context.Background(), domain.UserActor("u1"), "v1", 4, 0)
	require.NoError(t, err)
	_, err = mgr.Reserve(context.Background(), domain.SessionActor("s1"), "v1", 3, 0)
	require.NoError(t, err)

	got, err = availability.AvailableStock(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestAvailability_UnknownVariant(t *testing.T) {
	availability := NewAvailability(newTestStore(10))

	_, err := availability.AvailableStock(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrVariantNotFound)
}

func TestAvailability_NeverNegative(t *testing.T) {
	// ledger shrinks under a live hold: availability clamps at zero
	store := newTestStore(5)
	mgr, clock := newTestManager(store)
	availability := NewAvailability(store)
	availability.now = clock.Now

	_, err := mgr.Reserve(context.Background(), domain.UserActor("u1"), "v1", 5, 0)
	require.NoError(t, err)

	cart := NewCart(store)
	checkout := NewCheckout(store, nil, nil)
	buyer := domain.UserActor("u2")
	_, err = cart.AddLine(context.Background(), buyer, "v1", 2)
	require.NoError(t, err)
	_, err = checkout.Checkout(context.Background(), buyer, CheckoutRequest{PaymentMethod: "card"})
	require.NoError(t, err)

	got, err := availability.AvailableStock(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
