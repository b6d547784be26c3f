package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/port"
)

// Availability derives the effective purchasable quantity of a variant:
// ledger stock minus live reservations, always evaluated against the
// current clock so cleanup passes are an optimization, never a
// correctness dependency.
type Availability struct {
	store port.InventoryStore
	now   func() time.Time
}

func NewAvailability(store port.InventoryStore) *Availability {
	return &Availability{store: store, now: time.Now}
}

func (a *Availability) AvailableStock(ctx context.Context, variantID string) (int, error) {
	available, err := a.store.AvailableStock(ctx, variantID, a.now())
	if err != nil {
		return 0, fmt.Errorf("available stock for %s: %w", variantID, err)
	}
	return available, nil
}
