package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

// CreateReservation serializes the check-then-insert per variant by
// locking the variant row for the duration of the transaction, so two
// concurrent reserves (or a reserve racing a checkout) can never both
// observe sufficient availability.
func (s *MySQLStore) CreateReservation(ctx context.Context, res domain.Reservation) (*domain.Reservation, error) {
	userID, sessionID := actorValues(res.Actor)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT stock FROM variants WHERE id = ? FOR UPDATE`, res.VariantID,
		).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrVariantNotFound
		}
		if err != nil {
			return fmt.Errorf("lock variant: %w", err)
		}

		// the actor's own hold is about to be superseded, so it does
		// not count against them
		var reserved int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(quantity), 0) FROM reservations
			WHERE variant_id = ? AND active = 1 AND expires_at > ?
			  AND NOT (user_id <=> ? AND session_id <=> ?)`,
			res.VariantID, res.CreatedAt, userID, sessionID,
		).Scan(&reserved)
		if err != nil {
			return fmt.Errorf("sum live reservations: %w", err)
		}

		available := stock - reserved
		if available < 0 {
			available = 0
		}
		if available < res.Quantity {
			return &domain.InsufficientStockError{
				VariantID: res.VariantID,
				Requested: res.Quantity,
				Available: available,
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE reservations SET active = 0, updated_at = ?
			WHERE variant_id = ? AND active = 1 AND user_id <=> ? AND session_id <=> ?`,
			res.CreatedAt, res.VariantID, userID, sessionID,
		)
		if err != nil {
			return fmt.Errorf("supersede reservation: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reservations (id, user_id, session_id, variant_id, quantity, expires_at, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			res.ID, userID, sessionID, res.VariantID, res.Quantity, res.ExpiresAt, res.CreatedAt, res.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := res
	return &out, nil
}

func (s *MySQLStore) ExtendReservation(ctx context.Context, actor domain.Actor, variantID string, extra time.Duration, now time.Time) (*domain.Reservation, error) {
	userID, sessionID := actorValues(actor)

	var res domain.Reservation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var rowUser, rowSession sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, session_id, variant_id, quantity, expires_at, active, created_at, updated_at
			FROM reservations
			WHERE user_id <=> ? AND session_id <=> ? AND variant_id = ? AND active = 1 AND expires_at > ?
			ORDER BY expires_at DESC LIMIT 1
			FOR UPDATE`,
			userID, sessionID, variantID, now,
		).Scan(&res.ID, &rowUser, &rowSession, &res.VariantID, &res.Quantity, &res.ExpiresAt, &res.Active, &res.CreatedAt, &res.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// expired-but-not-cleaned counts as not found; never revive
			return domain.ErrReservationNotFound
		}
		if err != nil {
			return fmt.Errorf("lock reservation: %w", err)
		}
		res.Actor = actorFromColumns(rowUser, rowSession)

		// pushed forward from the current expiry, not from now
		res.ExpiresAt = res.ExpiresAt.Add(extra)
		res.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`UPDATE reservations SET expires_at = ?, updated_at = ? WHERE id = ?`,
			res.ExpiresAt, res.UpdatedAt, res.ID,
		)
		if err != nil {
			return fmt.Errorf("extend reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *MySQLStore) ReleaseReservation(ctx context.Context, actor domain.Actor, variantID string, now time.Time) error {
	userID, sessionID := actorValues(actor)
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET active = 0, updated_at = ?
		WHERE user_id <=> ? AND session_id <=> ? AND variant_id = ? AND active = 1`,
		now, userID, sessionID, variantID,
	)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

func (s *MySQLStore) ReleaseAllReservations(ctx context.Context, actor domain.Actor, now time.Time) error {
	userID, sessionID := actorValues(actor)
	_, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET active = 0, updated_at = ?
		WHERE user_id <=> ? AND session_id <=> ? AND active = 1`,
		now, userID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("release all reservations: %w", err)
	}
	return nil
}

func (s *MySQLStore) ActiveReservations(ctx context.Context, actor domain.Actor, now time.Time) ([]domain.Reservation, error) {
	userID, sessionID := actorValues(actor)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_id, variant_id, quantity, expires_at, active, created_at, updated_at
		FROM reservations
		WHERE user_id <=> ? AND session_id <=> ? AND active = 1 AND expires_at > ?
		ORDER BY created_at`,
		userID, sessionID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var rowUser, rowSession sql.NullString
		if err := rows.Scan(&res.ID, &rowUser, &rowSession, &res.VariantID, &res.Quantity, &res.ExpiresAt, &res.Active, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Actor = actorFromColumns(rowUser, rowSession)
		out = append(out, res)
	}
	return out, rows.Err()
}

func (s *MySQLStore) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reservations SET active = 0, updated_at = ?
		WHERE active = 1 AND expires_at < ?`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired reservations: %w", err)
	}
	return result.RowsAffected()
}
