package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvtrinh/sneaker-market/internal/adapter/storage"
	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

func newArchiveFixture() (*ExpiredCartArchive, *Cart, *storage.MemoryStore, *fakeClock) {
	store := storage.NewMemoryStore()
	store.SeedVariant(domain.Variant{ID: "v1", ProductID: "p1", SKU: "AJ1-EU42", Price: decimal.RequireFromString("100.00"), Stock: 10})
	clock := newFakeClock()
	archive := NewExpiredCartArchive(store, 5*time.Minute)
	archive.now = clock.Now
	cart := NewCart(store)
	cart.now = clock.Now
	return archive, cart, store, clock
}

func TestArchive_SnapshotsPrice(t *testing.T) {
	archive, _, _, _ := newArchiveFixture()
	actor := domain.UserActor("u1")

	records, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Quantity)
	assert.True(t, records[0].UnitPrice.Equal(decimal.RequireFromString("100.00")))
}

func TestArchive_DeduplicatesWithinWindow(t *testing.T) {
	archive, _, _, clock := newArchiveFixture()
	actor := domain.UserActor("u1")

	first, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	second, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 1}})
	require.NoError(t, err)

	// merged into the same record, quantity bumped
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 3, second[0].Quantity)

	history, err := archive.History(context.Background(), actor)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestArchive_NewRecordOutsideWindow(t *testing.T) {
	archive, _, _, clock := newArchiveFixture()
	actor := domain.UserActor("u1")

	_, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	_, err = archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 1}})
	require.NoError(t, err)

	history, err := archive.History(context.Background(), actor)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestReorder_RoundTrip(t *testing.T) {
	archive, cart, _, _ := newArchiveFixture()
	actor := domain.UserActor("u1")

	records, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)

	line, err := archive.Reorder(context.Background(), actor, records[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "v1", line.VariantID)
	assert.Equal(t, 2, line.Quantity)

	// the record is gone from history, and the cart holds the line
	history, err := archive.History(context.Background(), actor)
	require.NoError(t, err)
	assert.Empty(t, history)

	lines, err := cart.Lines(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestReorder_MergesIntoExistingLine(t *testing.T) {
	archive, cart, _, _ := newArchiveFixture()
	actor := domain.UserActor("u1")

	_, err := cart.AddLine(context.Background(), actor, "v1", 1)
	require.NoError(t, err)

	records, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)

	line, err := archive.Reorder(context.Background(), actor, records[0].ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
}

func TestReorder_NotOwnedOrMissing(t *testing.T) {
	archive, _, _, _ := newArchiveFixture()
	owner := domain.UserActor("u1")

	records, err := archive.Archive(context.Background(), owner, []ArchiveItem{{VariantID: "v1", Quantity: 2}})
	require.NoError(t, err)

	_, err = archive.Reorder(context.Background(), domain.UserActor("u2"), records[0].ID, 0)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = archive.Reorder(context.Background(), owner, "nope", 0)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	// already reordered -> record deleted -> second reorder fails
	_, err = archive.Reorder(context.Background(), owner, records[0].ID, 0)
	require.NoError(t, err)
	_, err = archive.Reorder(context.Background(), owner, records[0].ID, 0)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestPurgeOlderThan(t *testing.T) {
	archive, _, _, clock := newArchiveFixture()
	actor := domain.UserActor("u1")

	_, err := archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 1}})
	require.NoError(t, err)

	clock.Advance(40 * 24 * time.Hour)
	_, err = archive.Archive(context.Background(), actor, []ArchiveItem{{VariantID: "v1", Quantity: 1}})
	require.NoError(t, err)

	count, err := archive.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = archive.PurgeOlderThan(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidPurgeAge)
}

func TestArchive_RequiresAuthenticatedActor(t *testing.T) {
	archive, _, _, _ := newArchiveFixture()

	_, err := archive.Archive(context.Background(), domain.SessionActor("s1"), []ArchiveItem{{VariantID: "v1", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrAnonymousActor)
}

func TestCart_Validation(t *testing.T) {
	_, cart, _, _ := newArchiveFixture()
	actor := domain.UserActor("u1")

	_, err := cart.AddLine(context.Background(), actor, "v1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = cart.AddLine(context.Background(), actor, "v1", 100)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = cart.AddLine(context.Background(), domain.SessionActor("s1"), "v1", 1)
	assert.ErrorIs(t, err, domain.ErrAnonymousActor)

	_, err = cart.UpdateLine(context.Background(), actor, "v1", 2)
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)

	assert.NoError(t, cart.RemoveLine(context.Background(), actor, "v1"))
}
