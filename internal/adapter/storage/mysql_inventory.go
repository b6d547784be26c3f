package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

func (s *MySQLStore) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	var v domain.Variant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, size_label, size_system, sku, price, stock, created_at, updated_at
		FROM variants WHERE id = ?`, variantID,
	).Scan(&v.ID, &v.ProductID, &v.SizeLabel, &v.SizeSystem, &v.SKU, &v.Price, &v.Stock, &v.CreatedAt, &v.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	return &v, nil
}

// AvailableStock derives availability in one statement so the ledger
// read and the reservation sum see the same snapshot. Expired holds
// are excluded by comparing expires_at against now, not by relying on
// the active flag having been cleaned up.
func (s *MySQLStore) AvailableStock(ctx context.Context, variantID string, now time.Time) (int, error) {
	var available int
	err := s.db.QueryRowContext(ctx, `
		SELECT v.stock - COALESCE((
			SELECT SUM(r.quantity) FROM reservations r
			WHERE r.variant_id = v.id AND r.active = 1 AND r.expires_at > ?
		), 0)
		FROM variants v WHERE v.id = ?`, now, variantID,
	).Scan(&available)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrVariantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query available stock: %w", err)
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}
