package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

const maxCartLineQuantity = 99

// Cart manages durable cart lines. Carts belong to authenticated users
// only; anonymous sessions hold reservations instead.
type Cart struct {
	store port.CartStore
	now   func() time.Time
}

func NewCart(store port.CartStore) *Cart {
	return &Cart{store: store, now: time.Now}
}

func (c *Cart) AddLine(ctx context.Context, actor domain.Actor, variantID string, quantity int) (*domain.CartLine, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > maxCartLineQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	line, err := c.store.UpsertCartLine(ctx, actor.UserID(), variantID, quantity, c.now())
	if err != nil {
		return nil, fmt.Errorf("add cart line %s for user %s: %w", variantID, actor.UserID(), err)
	}
	return line, nil
}

func (c *Cart) UpdateLine(ctx context.Context, actor domain.Actor, variantID string, quantity int) (*domain.CartLine, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}
	if quantity < 1 || quantity > maxCartLineQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	line, err := c.store.SetCartLineQuantity(ctx, actor.UserID(), variantID, quantity, c.now())
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (c *Cart) RemoveLine(ctx context.Context, actor domain.Actor, variantID string) error {
	if err := validateCartActor(actor); err != nil {
		return err
	}
	return c.store.RemoveCartLine(ctx, actor.UserID(), variantID)
}

func (c *Cart) Lines(ctx context.Context, actor domain.Actor) ([]domain.CartLine, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}
	return c.store.CartLines(ctx, actor.UserID())
}

func validateCartActor(actor domain.Actor) error {
	if actor.IsZero() {
		return ErrInvalidActor
	}
	if actor.IsAnonymous() {
		return domain.ErrAnonymousActor
	}
	return nil
}
