package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a durable selection of variant+quantity for an
// authenticated user. It is independent of any reservation: a line can
// outlive the hold that prompted it.
type CartLine struct {
	ID        string
	UserID    string
	VariantID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpiredCartRecord is an archival snapshot of a cart line taken when
// the line lapsed. It exists so the user can re-create the line later;
// reordering deletes the record.
type ExpiredCartRecord struct {
	ID        string
	UserID    string
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}
