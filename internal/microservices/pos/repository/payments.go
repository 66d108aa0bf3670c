package repository

import (
	"context"
	"fmt"

	"restaurant-pos/internal/domain"
)

func (q *Queries) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO payments (id, session_id, cash_register_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.SessionID, p.CashRegisterID, p.Amount, p.Method, p.Status, toMillis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (q *Queries) PaymentsByRegister(ctx context.Context, registerID string) ([]domain.Payment, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, session_id, cash_register_id, amount, method, status, created_at
		FROM payments
		WHERE cash_register_id = $1
		ORDER BY created_at, id
	`, registerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			p       domain.Payment
			created int64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.CashRegisterID, &p.Amount, &p.Method, &p.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.CreatedAt = fromMillis(created)
		out = append(out, p)
	}
	return out, rows.Err()
}
