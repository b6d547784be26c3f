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

func (s *MySQLStore) ArchiveCartLine(ctx context.Context, userID, variantID string, quantity int, window time.Duration, now time.Time) (*domain.ExpiredCartRecord, error) {
	var rec domain.ExpiredCartRecord

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cutoff := now.Add(-window)
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, variant_id, quantity, unit_price, created_at
			FROM expired_cart_records
			WHERE user_id = ? AND variant_id = ? AND created_at > ?
			ORDER BY created_at DESC LIMIT 1
			FOR UPDATE`,
			userID, variantID, cutoff,
		).Scan(&rec.ID, &rec.UserID, &rec.VariantID, &rec.Quantity, &rec.UnitPrice, &rec.CreatedAt)
		switch {
		case err == nil:
			rec.Quantity += quantity
			if _, err := tx.ExecContext(ctx,
				`UPDATE expired_cart_records SET quantity = ? WHERE id = ?`,
				rec.Quantity, rec.ID,
			); err != nil {
				return fmt.Errorf("merge expired record: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			// price is snapshotted at archive time, not at reorder time
			rec = domain.ExpiredCartRecord{
				ID:        uuid.NewString(),
				UserID:    userID,
				VariantID: variantID,
				Quantity:  quantity,
				CreatedAt: now,
			}
			err := tx.QueryRowContext(ctx,
				`SELECT price FROM variants WHERE id = ?`, variantID,
			).Scan(&rec.UnitPrice)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrVariantNotFound
			}
			if err != nil {
				return fmt.Errorf("snapshot price: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO expired_cart_records (id, user_id, variant_id, quantity, unit_price, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.UserID, rec.VariantID, rec.Quantity, rec.UnitPrice, rec.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("insert expired record: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("find expired record: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MySQLStore) ReorderRecord(ctx context.Context, userID, recordID string, quantity int, now time.Time) (*domain.CartLine, error) {
	var line domain.CartLine

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var rec domain.ExpiredCartRecord
		err := tx.QueryRowContext(ctx, `
			SELECT id, user_id, variant_id, quantity, unit_price, created_at
			FROM expired_cart_records WHERE id = ? AND user_id = ?
			FOR UPDATE`,
			recordID, userID,
		).Scan(&rec.ID, &rec.UserID, &rec.VariantID, &rec.Quantity, &rec.UnitPrice, &rec.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("lock expired record: %w", err)
		}

		if quantity <= 0 {
			quantity = rec.Quantity
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_lines (id, user_id, variant_id, quantity, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity), updated_at = VALUES(updated_at)`,
			uuid.NewString(), userID, rec.VariantID, quantity, now, now,
		)
		if err != nil {
			return fmt.Errorf("restore cart line: %w", err)
		}

		// one reorder per record
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM expired_cart_records WHERE id = ?`, recordID,
		); err != nil {
			return fmt.Errorf("delete expired record: %w", err)
		}

		return tx.QueryRowContext(ctx, `
			SELECT id, user_id, variant_id, quantity, created_at, updated_at
			FROM cart_lines WHERE user_id = ? AND variant_id = ?`,
			userID, rec.VariantID,
		).Scan(&line.ID, &line.UserID, &line.VariantID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *MySQLStore) ExpiredRecords(ctx context.Context, userID string) ([]domain.ExpiredCartRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, variant_id, quantity, unit_price, created_at
		FROM expired_cart_records WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired records: %w", err)
	}
	defer rows.Close()

	var out []domain.ExpiredCartRecord
	for rows.Next() {
		var rec domain.ExpiredCartRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.VariantID, &rec.Quantity, &rec.UnitPrice, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expired record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *MySQLStore) PurgeExpiredRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM expired_cart_records WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge expired records: %w", err)
	}
	return result.RowsAffected()
}
