package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/metrics"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

var (
	ErrInvalidActor    = errors.New("actor must carry a user id or a session id")
	ErrInvalidDuration = errors.New("reservation duration must be positive")
	ErrInvalidStatus   = errors.New("unknown order status")
)

// ReservationConfig bounds how long holds may live.
type ReservationConfig struct {
	DefaultDuration time.Duration
	MaxDuration     time.Duration
}

// ReservationManager is the sole writer of reservation state. It never
// touches ledger stock: holds only shrink derived availability.
type ReservationManager struct {
	store port.ReservationStore
	cfg   ReservationConfig
	now   func() time.Time
}

func NewReservationManager(store port.ReservationStore, cfg ReservationConfig) *ReservationManager {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 15 * time.Minute
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 2 * time.Hour
	}
	return &ReservationManager{store: store, cfg: cfg, now: time.Now}
}

// Reserve places a hold on quantity units of the variant. The
// availability check and the insert are serialized per variant by the
// store, so two concurrent reserves can never jointly overcommit. An
// existing active hold by the same actor on the same variant is
// superseded, never stacked.
func (m *ReservationManager) Reserve(ctx context.Context, actor domain.Actor, variantID string, quantity int, duration time.Duration) (*domain.Reservation, error) {
	if actor.IsZero() {
		return nil, ErrInvalidActor
	}
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	if duration <= 0 {
		duration = m.cfg.DefaultDuration
	}
	if duration > m.cfg.MaxDuration {
		duration = m.cfg.MaxDuration
	}

	now := m.now()
	res := domain.Reservation{
		ID:        uuid.NewString(),
		Actor:     actor,
		VariantID: variantID,
		Quantity:  quantity,
		ExpiresAt: now.Add(duration),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := m.store.CreateReservation(ctx, res)
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			metrics.ReservationsRejected.Inc()
			return nil, err
		}
		return nil, fmt.Errorf("reserve %d of %s for %s: %w", quantity, variantID, actor, err)
	}

	metrics.ReservationsCreated.Inc()
	return created, nil
}

// Extend pushes a live hold's expiry forward from its current expiry,
// not from now. A hold whose expiry has already passed counts as not
// found: extension never resurrects a lapsed hold.
func (m *ReservationManager) Extend(ctx context.Context, actor domain.Actor, variantID string, extra time.Duration) (*domain.Reservation, error) {
	if actor.IsZero() {
		return nil, ErrInvalidActor
	}
	if extra <= 0 {
		return nil, ErrInvalidDuration
	}
	if extra > m.cfg.MaxDuration {
		extra = m.cfg.MaxDuration
	}

	res, err := m.store.ExtendReservation(ctx, actor, variantID, extra, m.now())
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("extend reservation on %s for %s: %w", variantID, actor, err)
	}
	return res, nil
}

// Release deactivates the actor's hold on the variant. Releasing a
// variant with no active hold is a no-op, not an error.
func (m *ReservationManager) Release(ctx context.Context, actor domain.Actor, variantID string) error {
	if actor.IsZero() {
		return ErrInvalidActor
	}
	if err := m.store.ReleaseReservation(ctx, actor, variantID, m.now()); err != nil {
		return fmt.Errorf("release reservation on %s for %s: %w", variantID, actor, err)
	}
	return nil
}

// ReleaseAll deactivates every active hold the actor has. Idempotent.
func (m *ReservationManager) ReleaseAll(ctx context.Context, actor domain.Actor) error {
	if actor.IsZero() {
		return ErrInvalidActor
	}
	if err := m.store.ReleaseAllReservations(ctx, actor, m.now()); err != nil {
		return fmt.Errorf("release all reservations for %s: %w", actor, err)
	}
	return nil
}

// ActiveReservations lists the actor's live holds.
func (m *ReservationManager) ActiveReservations(ctx context.Context, actor domain.Actor) ([]domain.Reservation, error) {
	if actor.IsZero() {
		return nil, ErrInvalidActor
	}
	return m.store.ActiveReservations(ctx, actor, m.now())
}

// CleanExpired deactivates every reservation whose expiry has passed
// and returns the count. Availability never depends on this running;
// it exists to keep the reservations table compact.
func (m *ReservationManager) CleanExpired(ctx context.Context) (int64, error) {
	count, err := m.store.DeactivateExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("clean expired reservations: %w", err)
	}
	if count > 0 {
		metrics.ReservationsExpired.Add(float64(count))
		log.Info().Int64("count", count).Msg("deactivated expired reservations")
	}
	return count, nil
}
