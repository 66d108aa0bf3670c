package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/domain"
)

const orderColumns = `o.id, o.session_id, o.cash_register_id, o.status, o.total_amount, o.created_at, o.updated_at, t.number`

const orderFrom = ` FROM orders o JOIN sessions s ON s.id = o.session_id JOIN tables t ON t.id = s.table_id `

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o                domain.Order
		created, updated int64
	)
	if err := row.Scan(&o.ID, &o.SessionID, &o.CashRegisterID, &o.Status, &o.TotalAmount,
		&created, &updated, &o.TableNumber); err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = fromMillis(created)
	o.UpdatedAt = fromMillis(updated)
	o.Items = []domain.OrderItem{}
	return o, nil
}

func (q *Queries) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, cash_register_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.SessionID, o.CashRegisterID, o.Status, o.TotalAmount, toMillis(o.CreatedAt), toMillis(o.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (q *Queries) InsertOrderItem(ctx context.Context, it domain.OrderItem) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, total_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice, toMillis(it.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert order item %s: %w", it.ProductID, err)
	}
	return nil
}

// GetOrder returns the order with its items and product names.
func (q *Queries) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(q.q.QueryRowContext(ctx, `SELECT `+orderColumns+orderFrom+`WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	orders := []domain.Order{o}
	if err := q.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// ListOrders returns orders oldest first, optionally filtered by status.
func (q *Queries) ListOrders(ctx context.Context, status *domain.OrderStatus) ([]domain.Order, error) {
	if status != nil {
		return q.listOrders(ctx, `WHERE o.status = $1 ORDER BY o.created_at, o.id`, *status)
	}
	return q.listOrders(ctx, `ORDER BY o.created_at, o.id`)
}

func (q *Queries) OrdersBySession(ctx context.Context, sessionID string) ([]domain.Order, error) {
	return q.listOrders(ctx, `WHERE o.session_id = $1 ORDER BY o.created_at, o.id`, sessionID)
}

func (q *Queries) listOrders(ctx context.Context, tail string, args ...any) ([]domain.Order, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+orderColumns+orderFrom+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	// Release the connection before the item query; SQLite runs on one.
	rows.Close()
	if err := q.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queries) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	rows, err := q.q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.total_price, oi.created_at, p.name
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id IN (`+placeholders(1, len(ids))+`)
		ORDER BY oi.created_at, oi.id
	`, stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var (
		it      domain.OrderItem
		created int64
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice,
		&created, &it.Product.Name); err != nil {
		return domain.OrderItem{}, err
	}
	it.CreatedAt = fromMillis(created)
	it.Product.ID = it.ProductID
	return it, nil
}

func (q *Queries) GetOrderItem(ctx context.Context, id string) (domain.OrderItem, error) {
	it, err := scanItem(q.q.QueryRowContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.total_price, oi.created_at, p.name
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OrderItem{}, domain.ErrOrderItemNotFound
	}
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("failed to get order item: %w", err)
	}
	return it, nil
}

// UpdateOrderStatus moves the order from one status to another. It reports
// false when the order was no longer in the from status.
func (q *Queries) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, toMillis(now), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockEditableOrder stamps an order that is neither PAID nor CANCELLED and
// returns its current status. A concurrent bill settlement waits on it.
func (q *Queries) LockEditableOrder(ctx context.Context, id string, now time.Time) (domain.OrderStatus, error) {
	return q.lockOrder(ctx, id, now, `status NOT IN ('PAID', 'CANCELLED')`, domain.ErrOrderClosed)
}

// LockDeletableOrder stamps an order that is not PAID and returns its status.
func (q *Queries) LockDeletableOrder(ctx context.Context, id string, now time.Time) (domain.OrderStatus, error) {
	return q.lockOrder(ctx, id, now, `status <> 'PAID'`, domain.ErrOrderNotPayable)
}

func (q *Queries) lockOrder(ctx context.Context, id string, now time.Time, guard string, rejected error) (domain.OrderStatus, error) {
	res, err := q.q.ExecContext(ctx, `UPDATE orders SET updated_at = $1 WHERE id = $2 AND `+guard, toMillis(now), id)
	if err != nil {
		return "", fmt.Errorf("failed to lock order: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return "", err
	}
	var status domain.OrderStatus
	err = q.q.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read order status: %w", err)
	}
	if n == 0 {
		return status, rejected
	}
	return status, nil
}

// RecomputeOrderTotal sets total_amount to the sum of the order's lines.
func (q *Queries) RecomputeOrderTotal(ctx context.Context, id string, now time.Time) (decimal.Decimal, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT total_price FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum order items: %w", err)
	}
	total := decimal.Zero
	for rows.Next() {
		var line decimal.Decimal
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return decimal.Zero, fmt.Errorf("failed to scan order item total: %w", err)
		}
		total = total.Add(line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum order items: %w", err)
	}

	if _, err := q.q.ExecContext(ctx, `
		UPDATE orders SET total_amount = $1, updated_at = $2 WHERE id = $3
	`, total, toMillis(now), id); err != nil {
		return decimal.Zero, fmt.Errorf("failed to update order total: %w", err)
	}
	return total, nil
}

func (q *Queries) DeleteOrderItem(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete order item: %w", err)
	}
	return nil
}

// DeleteOrder removes the order and its items unless it is PAID. It reports
// false when the order was PAID or already gone.
func (q *Queries) DeleteOrder(ctx context.Context, id string) (bool, error) {
	if _, err := q.q.ExecContext(ctx, `
		DELETE FROM order_items
		WHERE order_id IN (SELECT id FROM orders WHERE id = $1 AND status <> 'PAID')
	`, id); err != nil {
		return false, fmt.Errorf("failed to delete order items: %w", err)
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1 AND status <> 'PAID'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type ClaimedOrder struct {
	ID          string
	TotalAmount decimal.Decimal
}

// ClaimOutstandingOrders marks every order of the session that is neither
// PAID nor CANCELLED as PAID and returns them with their totals. Rows locked
// by a concurrent item edit are re-read after the lock clears, so the totals
// are the committed ones.
func (q *Queries) ClaimOutstandingOrders(ctx context.Context, sessionID string, now time.Time) ([]ClaimedOrder, error) {
	rows, err := q.q.QueryContext(ctx, `
		UPDATE orders SET status = 'PAID', updated_at = $1
		WHERE session_id = $2 AND status NOT IN ('PAID', 'CANCELLED')
		RETURNING id, total_amount
	`, toMillis(now), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark orders paid: %w", err)
	}
	defer rows.Close()

	out := make([]ClaimedOrder, 0)
	for rows.Next() {
		var c ClaimedOrder
		if err := rows.Scan(&c.ID, &c.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan paid order: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to mark orders paid: %w", err)
	}
	return out, nil
}

func (q *Queries) CountUnsettledOrders(ctx context.Context, registerID string) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE cash_register_id = $1 AND status NOT IN ('PAID', 'CANCELLED')
	`, registerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsettled orders: %w", err)
	}
	return n, nil
}

// PaidLines returns every line of the PAID orders attributed to a register.
func (q *Queries) PaidLines(ctx context.Context, registerID string) ([]domain.OrderItem, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.total_price, oi.created_at, p.name
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.cash_register_id = $1 AND o.status = 'PAID'
	`, registerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load paid lines: %w", err)
	}
	defer rows.Close()

	out := make([]domain.OrderItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paid line: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
