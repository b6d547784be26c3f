package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/port"
)

// PlaceOrder commits the user's cart as an order in one transaction.
// Variant rows are locked in ascending id order, the order the cart
// query returns them, so concurrent checkouts cannot deadlock on each
// other's lock sets.
func (s *MySQLStore) PlaceOrder(ctx context.Context, p port.PlaceOrderParams) (*domain.Order, error) {
	var order *domain.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT variant_id, quantity FROM cart_lines
			WHERE user_id = ? ORDER BY variant_id`,
			p.UserID,
		)
		if err != nil {
			return fmt.Errorf("query cart lines: %w", err)
		}
		type cartEntry struct {
			variantID string
			quantity  int
		}
		var entries []cartEntry
		for rows.Next() {
			var e cartEntry
			if err := rows.Scan(&e.variantID, &e.quantity); err != nil {
				rows.Close()
				return fmt.Errorf("scan cart line: %w", err)
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate cart lines: %w", err)
		}
		if len(entries) == 0 {
			return domain.ErrEmptyCart
		}

		priced := make([]domain.PricedLine, 0, len(entries))
		for _, e := range entries {
			var line domain.PricedLine
			line.VariantID = e.variantID
			line.Quantity = e.quantity
			err := tx.QueryRowContext(ctx,
				`SELECT price, stock FROM variants WHERE id = ? FOR UPDATE`, e.variantID,
			).Scan(&line.UnitPrice, &line.Stock)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrVariantNotFound
			}
			if err != nil {
				return fmt.Errorf("lock variant %s: %w", e.variantID, err)
			}
			priced = append(priced, line)
		}

		order, err = domain.BuildOrder(
			p.OrderID, p.OrderNumber, p.UserID,
			p.ShippingAddress, p.BillingAddress, p.PaymentMethod,
			priced, p.Now,
		)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, order_number, user_id, status, payment_status, total_amount,
				shipping_address, billing_address, payment_method, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID, order.OrderNumber, order.UserID, order.Status, order.PaymentStatus,
			order.TotalAmount, order.ShippingAddress, order.BillingAddress, order.PaymentMethod,
			order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, line := range order.Lines {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO order_lines (id, order_id, variant_id, quantity, unit_price, line_total)
				VALUES (?, ?, ?, ?, ?, ?)`,
				line.ID, line.OrderID, line.VariantID, line.Quantity, line.UnitPrice, line.LineTotal,
			)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}

			// backstop against a decrement racing past the locked read
			result, err := tx.ExecContext(ctx,
				`UPDATE variants SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`,
				line.Quantity, p.Now, line.VariantID, line.Quantity,
			)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if affected == 0 {
				return &domain.InsufficientStockError{
					VariantID: line.VariantID,
					Requested: line.Quantity,
					Available: 0,
				}
			}
		}

		if _, err = tx.ExecContext(ctx,
			`DELETE FROM cart_lines WHERE user_id = ?`, p.UserID,
		); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		variantIDs := make([]any, 0, len(order.Lines)+2)
		variantIDs = append(variantIDs, p.Now, p.UserID)
		placeholders := ""
		for i, line := range order.Lines {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			variantIDs = append(variantIDs, line.VariantID)
		}
		if _, err = tx.ExecContext(ctx, `
			UPDATE reservations SET active = 0, updated_at = ?
			WHERE user_id = ? AND active = 1 AND variant_id IN (`+placeholders+`)`,
			variantIDs...,
		); err != nil {
			return fmt.Errorf("consume reservations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *MySQLStore) CancelOrder(ctx context.Context, orderID string, now time.Time) (*domain.Order, error) {
	var order *domain.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := getOrderTx(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if !o.Status.Cancellable() {
			return &domain.OrderStateError{
				OrderID: orderID,
				From:    o.Status,
				To:      domain.OrderStatusCancelled,
			}
		}

		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = now
		if o.PaymentStatus == domain.PaymentStatusPaid {
			o.PaymentStatus = domain.PaymentStatusRefunded
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`,
			o.Status, o.PaymentStatus, o.UpdatedAt, orderID,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		for _, line := range o.Lines {
			if _, err = tx.ExecContext(ctx,
				`UPDATE variants SET stock = stock + ?, updated_at = ? WHERE id = ?`,
				line.Quantity, now, line.VariantID,
			); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *MySQLStore) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus, now time.Time) (*domain.Order, error) {
	var order *domain.Order

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := getOrderTx(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(next) {
			return &domain.OrderStateError{OrderID: orderID, From: o.Status, To: next}
		}

		o.Status = next
		o.UpdatedAt = now
		if next == domain.OrderStatusConfirmed {
			o.PaymentStatus = domain.PaymentStatusPaid
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, payment_status = ?, updated_at = ? WHERE id = ?`,
			o.Status, o.PaymentStatus, o.UpdatedAt, orderID,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *MySQLStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order *domain.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := getOrderTx(ctx, tx, orderID, false)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *MySQLStore) OrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_number, user_id, status, payment_status, total_amount,
			shipping_address, billing_address, payment_method, created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows.Scan, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := orderLinesQ(ctx, s.db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getOrderTx(ctx context.Context, tx *sql.Tx, orderID string, forUpdate bool) (*domain.Order, error) {
	query := `
		SELECT id, order_number, user_id, status, payment_status, total_amount,
			shipping_address, billing_address, payment_method, created_at, updated_at
		FROM orders WHERE id = ?`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var o domain.Order
	err := scanOrder(tx.QueryRowContext(ctx, query, orderID).Scan, &o)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := orderLinesQ(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func orderLinesQ(ctx context.Context, q rowQuerier, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, variant_id, quantity, unit_price, line_total
		FROM order_lines WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.VariantID, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanOrder(scan func(dest ...any) error, o *domain.Order) error {
	return scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
}
