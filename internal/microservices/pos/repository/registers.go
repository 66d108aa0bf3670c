package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/domain"
)

const registerColumns = `id, status, initial_value, total_payments, final_value, payments_breakdown, products_sold, opened_at, closed_at`

func scanRegister(row rowScanner) (domain.CashRegister, error) {
	var (
		r                   domain.CashRegister
		total, final        decimal.NullDecimal
		breakdown, products sql.NullString
		opened              int64
		closed              sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Status, &r.InitialValue, &total, &final, &breakdown, &products, &opened, &closed); err != nil {
		return domain.CashRegister{}, err
	}
	if total.Valid {
		r.TotalPayments = &total.Decimal
	}
	if final.Valid {
		r.FinalValue = &final.Decimal
	}
	if breakdown.Valid && breakdown.String != "" {
		if err := json.Unmarshal([]byte(breakdown.String), &r.PaymentsBreakdown); err != nil {
			return domain.CashRegister{}, fmt.Errorf("decode payments breakdown: %w", err)
		}
	}
	if products.Valid && products.String != "" {
		if err := json.Unmarshal([]byte(products.String), &r.ProductsSold); err != nil {
			return domain.CashRegister{}, fmt.Errorf("decode products sold: %w", err)
		}
	}
	r.OpenedAt = fromMillis(opened)
	r.ClosedAt = fromNullMillis(closed)
	return r, nil
}

// InsertRegister opens a till. The partial unique index over OPEN rows turns
// a second concurrent open into ErrRegisterAlreadyOpen.
func (q *Queries) InsertRegister(ctx context.Context, r domain.CashRegister) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO cash_registers (id, status, initial_value, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, r.Status, r.InitialValue, toMillis(r.OpenedAt), toMillis(r.OpenedAt))
	if uniqueViolation(err, "ux_cash_registers_open", "cash_registers.status") {
		return domain.ErrRegisterAlreadyOpen
	}
	if err != nil {
		return fmt.Errorf("failed to insert cash register: %w", err)
	}
	return nil
}

// OpenRegister returns the open till. With share set, the row stays locked
// against a concurrent close until the caller's transaction ends.
func (q *Queries) OpenRegister(ctx context.Context, share bool) (domain.CashRegister, error) {
	query := `SELECT ` + registerColumns + ` FROM cash_registers WHERE status = 'OPEN'`
	if share {
		query += q.dialect.ShareLock()
	}
	r, err := scanRegister(q.q.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashRegister{}, domain.ErrNoOpenRegister
	}
	if err != nil {
		return domain.CashRegister{}, fmt.Errorf("failed to get open cash register: %w", err)
	}
	return r, nil
}

// LockOpenRegister takes the exclusive row lock on the open till and returns
// it. Orders and bills holding the shared lock finish first.
func (q *Queries) LockOpenRegister(ctx context.Context, now time.Time) (domain.CashRegister, error) {
	r, err := scanRegister(q.q.QueryRowContext(ctx, `
		UPDATE cash_registers SET updated_at = $1
		WHERE status = 'OPEN'
		RETURNING `+registerColumns, toMillis(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashRegister{}, domain.ErrNoOpenRegister
	}
	if err != nil {
		return domain.CashRegister{}, fmt.Errorf("failed to lock open cash register: %w", err)
	}
	return r, nil
}

// CloseRegister persists the closing snapshot and flips the till to CLOSED
// in one statement.
func (q *Queries) CloseRegister(ctx context.Context, s domain.RegisterSummary, now time.Time) error {
	breakdown, err := json.Marshal(s.PaymentsByMethod)
	if err != nil {
		return fmt.Errorf("encode payments breakdown: %w", err)
	}
	products, err := json.Marshal(s.SoldProducts)
	if err != nil {
		return fmt.Errorf("encode products sold: %w", err)
	}
	res, err := q.q.ExecContext(ctx, `
		UPDATE cash_registers
		SET status = 'CLOSED', total_payments = $1, final_value = $2,
		    payments_breakdown = $3, products_sold = $4, closed_at = $5, updated_at = $5
		WHERE id = $6 AND status = 'OPEN'
	`, s.TotalPayments, s.FinalValue, string(breakdown), string(products), toMillis(now), s.RegisterID)
	if err != nil {
		return fmt.Errorf("failed to close cash register: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoOpenRegister
	}
	return nil
}

// ClosedRegisters lists closed tills whose close time falls within the
// optional bounds, newest first.
func (q *Queries) ClosedRegisters(ctx context.Context, start, end *time.Time) ([]domain.CashRegister, error) {
	query := `SELECT ` + registerColumns + ` FROM cash_registers WHERE status = 'CLOSED'`
	args := make([]any, 0, 2)
	if start != nil {
		args = append(args, toMillis(*start))
		query += fmt.Sprintf(` AND closed_at >= $%d`, len(args))
	}
	if end != nil {
		args = append(args, toMillis(*end))
		query += fmt.Sprintf(` AND closed_at <= $%d`, len(args))
	}
	query += ` ORDER BY closed_at DESC`

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cash registers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CashRegister, 0)
	for rows.Next() {
		r, err := scanRegister(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cash register: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
