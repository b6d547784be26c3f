package port

import (
	"context"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

// InventoryStore exposes read access to the variant ledger.
type InventoryStore interface {
	// GetVariant retrieves a variant by id; domain.ErrVariantNotFound when absent.
	GetVariant(ctx context.Context, variantID string) (*domain.Variant, error)

	// AvailableStock computes ledger stock minus active, unexpired
	// reservations as of now, clamped at zero. Expiry is evaluated
	// against now, never against cleanup state.
	AvailableStock(ctx context.Context, variantID string, now time.Time) (int, error)
}

// ReservationStore owns the reservation lifecycle. Implementations must
// serialize CreateReservation per variant against concurrent creates
// and checkouts (row lock or equivalent conditional write).
type ReservationStore interface {
	// CreateReservation atomically checks availability and inserts the
	// reservation, superseding any active hold the same actor already
	// has on the variant. Fails with domain.InsufficientStockError
	// (carrying the available count) without partial effects.
	CreateReservation(ctx context.Context, res domain.Reservation) (*domain.Reservation, error)

	// ExtendReservation pushes the expiry of the actor's live hold on
	// the variant forward by extra, measured from its current expiry.
	// domain.ErrReservationNotFound when no live hold exists; a lapsed
	// hold is never revived.
	ExtendReservation(ctx context.Context, actor domain.Actor, variantID string, extra time.Duration, now time.Time) (*domain.Reservation, error)

	// ReleaseReservation deactivates the actor's active holds on the
	// variant. Idempotent.
	ReleaseReservation(ctx context.Context, actor domain.Actor, variantID string, now time.Time) error

	// ReleaseAllReservations deactivates all of the actor's active holds.
	ReleaseAllReservations(ctx context.Context, actor domain.Actor, now time.Time) error

	// ActiveReservations lists the actor's active, unexpired holds.
	ActiveReservations(ctx context.Context, actor domain.Actor, now time.Time) ([]domain.Reservation, error)

	// DeactivateExpired flips active off for every reservation whose
	// expiry has passed; returns the number affected. Maintenance only.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// CartStore persists durable cart lines for authenticated users.
type CartStore interface {
	// UpsertCartLine adds quantity onto an existing line for the
	// variant or creates one.
	UpsertCartLine(ctx context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error)

	// SetCartLineQuantity replaces the quantity of an existing line;
	// domain.ErrCartLineNotFound when absent.
	SetCartLineQuantity(ctx context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error)

	// RemoveCartLine deletes the line. Idempotent.
	RemoveCartLine(ctx context.Context, userID, variantID string) error

	// CartLines lists the user's lines.
	CartLines(ctx context.Context, userID string) ([]domain.CartLine, error)
}

// OrderStore commits and mutates orders. Every method is one atomic
// unit: on error nothing persists.
type OrderStore interface {
	// PlaceOrder converts the user's cart into the order assembled by
	// domain.BuildOrder: re-verifies each variant's ledger stock under
	// an exclusive row lock, inserts order and lines, decrements
	// stock, deletes the cart lines and deactivates the user's
	// reservations for the purchased variants, all in one transaction.
	// domain.ErrEmptyCart / domain.InsufficientStockError roll back
	// everything.
	PlaceOrder(ctx context.Context, p PlaceOrderParams) (*domain.Order, error)

	// CancelOrder atomically checks the order is still cancellable,
	// marks it cancelled and restores each line's quantity onto its
	// variant's ledger. A second cancel fails with domain.OrderStateError
	// and restores nothing.
	CancelOrder(ctx context.Context, orderID string, now time.Time) (*domain.Order, error)

	// UpdateOrderStatus applies a forward fulfilment transition;
	// domain.OrderStateError when the chain forbids it. Cancellation
	// must go through CancelOrder.
	UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus, now time.Time) (*domain.Order, error)

	// GetOrder retrieves an order with its lines; domain.ErrOrderNotFound when absent.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// OrdersByUser lists a user's orders, newest first.
	OrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

// PlaceOrderParams carries the service-generated identity and the
// checkout request fields into the storage transaction.
type PlaceOrderParams struct {
	UserID          string
	OrderID         string
	OrderNumber     string
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Now             time.Time
}

// ExpiredCartStore archives lapsed cart lines for later reorder.
type ExpiredCartStore interface {
	// ArchiveCartLine records the lapsed line, merging quantity into an
	// existing record for the same user+variant created within the
	// dedupe window instead of duplicating. The variant's current
	// price is snapshotted on insert.
	ArchiveCartLine(ctx context.Context, userID, variantID string, quantity int, window time.Duration, now time.Time) (*domain.ExpiredCartRecord, error)

	// ReorderRecord merges the record back into the user's cart
	// (creating or adding to a line) and deletes the record, in one
	// transaction. domain.ErrRecordNotFound when absent or not owned.
	// quantity <= 0 means reorder the archived quantity.
	ReorderRecord(ctx context.Context, userID, recordID string, quantity int, now time.Time) (*domain.CartLine, error)

	// ExpiredRecords lists the user's archival records, newest first.
	ExpiredRecords(ctx context.Context, userID string) ([]domain.ExpiredCartRecord, error)

	// PurgeExpiredRecords deletes records older than cutoff; returns count.
	PurgeExpiredRecords(ctx context.Context, cutoff time.Time) (int64, error)
}
