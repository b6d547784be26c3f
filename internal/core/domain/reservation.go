package domain

import "time"

// Reservation is a time-boxed soft hold on N units of a variant. It
// reduces effective availability without touching ledger stock.
// Reservations are never deleted, only deactivated, so the history of
// holds stays auditable.
type Reservation struct {
	ID        string
	Actor     Actor
	VariantID string
	Quantity  int
	ExpiresAt time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live reports whether the reservation still counts against
// availability at the given instant. Expiry is evaluated against the
// clock, not against the Active flag alone: a hold whose expiry has
// passed is dead even before a cleanup pass flips the flag.
func (r Reservation) Live(now time.Time) bool {
	return r.Active && r.ExpiresAt.After(now)
}
