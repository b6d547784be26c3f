package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

func (s *MySQLStore) UpsertCartLine(ctx context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_lines (id, user_id, variant_id, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = VALUES(updated_at)`,
		uuid.NewString(), userID, variantID, quantity, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}
	return s.cartLine(ctx, userID, variantID)
}

func (s *MySQLStore) SetCartLineQuantity(ctx context.Context, userID, variantID string, quantity int, now time.Time) (*domain.CartLine, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cart_lines SET quantity = ?, updated_at = ?
		WHERE user_id = ? AND variant_id = ?`,
		quantity, now, userID, variantID,
	)
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	// rows-affected is unreliable here (0 for a no-op update), so the
	// read-back distinguishes missing line from unchanged line
	return s.cartLine(ctx, userID, variantID)
}

func (s *MySQLStore) RemoveCartLine(ctx context.Context, userID, variantID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_lines WHERE user_id = ? AND variant_id = ?`,
		userID, variantID,
	)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

func (s *MySQLStore) CartLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, variant_id, quantity, created_at, updated_at
		FROM cart_lines WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var out []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ID, &line.UserID, &line.VariantID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *MySQLStore) cartLine(ctx context.Context, userID, variantID string) (*domain.CartLine, error) {
	var line domain.CartLine
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, variant_id, quantity, created_at, updated_at
		FROM cart_lines WHERE user_id = ? AND variant_id = ?`,
		userID, variantID,
	).Scan(&line.ID, &line.UserID, &line.VariantID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return &line, nil
}
