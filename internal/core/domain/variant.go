package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SizeSystem string

const (
	SizeSystemEU SizeSystem = "EU"
	SizeSystemUS SizeSystem = "US"
	SizeSystemUK SizeSystem = "UK"
)

// Product is the catalog entry a variant belongs to.
type Product struct {
	ID        string
	Name      string
	Category  string
	BasePrice decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Variant is one purchasable size/SKU of a product. Its Stock field is
// the ledger count: the authoritative on-hand quantity, never negative.
// Only the checkout and cancellation paths may write it.
type Variant struct {
	ID         string
	ProductID  string
	SizeLabel  string
	SizeSystem SizeSystem
	SKU        string
	Price      decimal.Decimal
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
