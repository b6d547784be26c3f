package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/metrics"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

// CheckoutRequest carries the client-supplied fields of a checkout.
type CheckoutRequest struct {
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
}

// Checkout converts carts into immutable orders. It is the only
// component that permanently mutates ledger stock: downward on commit,
// upward on cancellation. Reservations are advisory and are never a
// checkout precondition; the ledger is re-verified under lock instead.
type Checkout struct {
	orders port.OrderStore
	guard  port.IdempotencyGuard
	events port.EventPublisher
	now    func() time.Time
	seq    atomic.Uint64
}

func NewCheckout(orders port.OrderStore, guard port.IdempotencyGuard, events port.EventPublisher) *Checkout {
	if events == nil {
		events = NoopPublisher{}
	}
	return &Checkout{orders: orders, guard: guard, events: events, now: time.Now}
}

// Checkout commits the actor's cart as an order in one atomic unit:
// stock re-check under row locks, order+lines insert, ledger
// decrement, cart clearing. Any failure rolls the whole thing back.
func (c *Checkout) Checkout(ctx context.Context, actor domain.Actor, req CheckoutRequest) (*domain.Order, error) {
	if actor.IsZero() {
		return nil, ErrInvalidActor
	}
	if actor.IsAnonymous() {
		return nil, domain.ErrAnonymousActor
	}

	if c.guard != nil {
		key := "checkout:" + actor.UserID()
		ok, err := c.guard.Acquire(ctx, key)
		if err != nil {
			// the guard is an optimization; the transaction stays correct without it
			log.Warn().Err(err).Str("user_id", actor.UserID()).Msg("idempotency guard unavailable")
		} else if !ok {
			return nil, domain.ErrCheckoutInProgress
		} else {
			defer func() {
				if releaseErr := c.guard.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
					log.Warn().Err(releaseErr).Str("user_id", actor.UserID()).Msg("failed to release idempotency key")
				}
			}()
		}
	}

	now := c.now()
	order, err := c.orders.PlaceOrder(ctx, port.PlaceOrderParams{
		UserID:          actor.UserID(),
		OrderID:         uuid.NewString(),
		OrderNumber:     c.nextOrderNumber(now),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Now:             now,
	})
	if err != nil {
		var insufficient *domain.InsufficientStockError
		switch {
		case errors.Is(err, domain.ErrEmptyCart):
			metrics.Checkouts.WithLabelValues("empty_cart").Inc()
			return nil, err
		case errors.As(err, &insufficient):
			metrics.Checkouts.WithLabelValues("insufficient_stock").Inc()
			return nil, err
		default:
			metrics.Checkouts.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("checkout for user %s: %w", actor.UserID(), err)
		}
	}

	metrics.Checkouts.WithLabelValues("success").Inc()
	c.publish(ctx, domain.OrderEventCreated, order)
	return order, nil
}

// Cancel cancels the order and restores each line's quantity onto its
// variant's ledger. The status check and the restoration are one
// atomic unit, so a racing second cancel is rejected and restores
// nothing. Customers may only cancel their own orders.
func (c *Checkout) Cancel(ctx context.Context, actor domain.Actor, role domain.Role, orderID string) (*domain.Order, error) {
	if err := c.authorize(ctx, actor, role, orderID); err != nil {
		return nil, err
	}

	order, err := c.orders.CancelOrder(ctx, orderID, c.now())
	if err != nil {
		var state *domain.OrderStateError
		if errors.Is(err, domain.ErrOrderNotFound) || errors.As(err, &state) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	metrics.OrdersCancelled.Inc()
	c.publish(ctx, domain.OrderEventCancelled, order)
	return order, nil
}

// UpdateStatus applies a status transition. Cancellation routes
// through Cancel so stock restoration stays atomic with the status
// change; forward transitions are restricted to sellers and admins.
func (c *Checkout) UpdateStatus(ctx context.Context, actor domain.Actor, role domain.Role, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	if next == domain.OrderStatusCancelled {
		return c.Cancel(ctx, actor, role, orderID)
	}
	if !role.CanAdvanceOrders() {
		return nil, domain.ErrForbidden
	}

	order, err := c.orders.UpdateOrderStatus(ctx, orderID, next, c.now())
	if err != nil {
		var state *domain.OrderStateError
		if errors.Is(err, domain.ErrOrderNotFound) || errors.As(err, &state) {
			return nil, err
		}
		return nil, fmt.Errorf("update order %s to %s: %w", orderID, next, err)
	}
	return order, nil
}

// Order returns the order if the actor owns it or is an admin.
func (c *Checkout) Order(ctx context.Context, actor domain.Actor, role domain.Role, orderID string) (*domain.Order, error) {
	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && order.UserID != actor.UserID() {
		// hide existence from non-owners
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// Orders lists the actor's own orders.
func (c *Checkout) Orders(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	if actor.IsZero() || actor.IsAnonymous() {
		return nil, domain.ErrAnonymousActor
	}
	return c.orders.OrdersByUser(ctx, actor.UserID())
}

func (c *Checkout) authorize(ctx context.Context, actor domain.Actor, role domain.Role, orderID string) error {
	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if role == domain.RoleAdmin {
		return nil
	}
	if order.UserID != actor.UserID() {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (c *Checkout) publish(ctx context.Context, eventType domain.OrderEventType, order *domain.Order) {
	event := domain.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		OccurredAt:  c.now(),
	}
	if err := c.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Error().Err(err).
			Str("order_id", order.ID).
			Str("event", string(eventType)).
			Msg("failed to publish order event")
	}
}

// nextOrderNumber yields a human-readable, process-unique order
// number: date prefix, per-process sequence, high-resolution suffix.
func (c *Checkout) nextOrderNumber(now time.Time) string {
	seq := c.seq.Add(1)
	return fmt.Sprintf("SM-%s-%04d-%06d", now.Format("20060102"), seq%10000, now.UnixNano()%1_000_000)
}

// NoopPublisher discards events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }
