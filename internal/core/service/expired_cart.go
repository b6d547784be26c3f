package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

var ErrInvalidPurgeAge = errors.New("purge age must be at least one day")

// ArchiveItem is one lapsed cart line submitted for archival.
type ArchiveItem struct {
	VariantID string
	Quantity  int
}

// ExpiredCartArchive records cart contents that lapsed so the user can
// reorder them later. Bookkeeping only: nothing here touches stock or
// reservations.
type ExpiredCartArchive struct {
	store  port.ExpiredCartStore
	window time.Duration
	now    func() time.Time
}

func NewExpiredCartArchive(store port.ExpiredCartStore, dedupeWindow time.Duration) *ExpiredCartArchive {
	if dedupeWindow <= 0 {
		dedupeWindow = 5 * time.Minute
	}
	return &ExpiredCartArchive{store: store, window: dedupeWindow, now: time.Now}
}

// Archive snapshots each lapsed line. A second archival of the same
// variant inside the dedupe window bumps the existing record's
// quantity instead of duplicating it.
func (a *ExpiredCartArchive) Archive(ctx context.Context, actor domain.Actor, items []ArchiveItem) ([]domain.ExpiredCartRecord, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}

	records := make([]domain.ExpiredCartRecord, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		rec, err := a.store.ArchiveCartLine(ctx, actor.UserID(), item.VariantID, item.Quantity, a.window, a.now())
		if err != nil {
			return nil, fmt.Errorf("archive cart line %s for user %s: %w", item.VariantID, actor.UserID(), err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Reorder re-creates the archived line in the user's cart (merging
// into an existing line for the variant) and deletes the record.
func (a *ExpiredCartArchive) Reorder(ctx context.Context, actor domain.Actor, recordID string, quantity int) (*domain.CartLine, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}
	line, err := a.store.ReorderRecord(ctx, actor.UserID(), recordID, quantity, a.now())
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reorder record %s for user %s: %w", recordID, actor.UserID(), err)
	}
	return line, nil
}

// History lists the user's archival records, newest first.
func (a *ExpiredCartArchive) History(ctx context.Context, actor domain.Actor) ([]domain.ExpiredCartRecord, error) {
	if err := validateCartActor(actor); err != nil {
		return nil, err
	}
	return a.store.ExpiredRecords(ctx, actor.UserID())
}

// PurgeOlderThan deletes records older than the given number of days.
func (a *ExpiredCartArchive) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		return 0, ErrInvalidPurgeAge
	}
	cutoff := a.now().AddDate(0, 0, -days)
	count, err := a.store.PurgeExpiredRecords(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired cart records: %w", err)
	}
	return count, nil
}
