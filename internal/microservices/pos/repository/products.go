package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant-pos/internal/domain"
)

const productColumns = `id, name, price, stock, is_active, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                domain.Product
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.IsActive, &created, &updated); err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return p, nil
}

func (q *Queries) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Name, p.Price, p.Stock, p.IsActive, toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// ListProducts returns active products by name.
func (q *Queries) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE is_active = TRUE ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(q.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active = TRUE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ProductsByIDs loads every active product in ids. The first id without a
// product yields a ProductNotFoundError.
func (q *Queries) ProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	if len(uniq) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE is_active = TRUE AND id IN (`+placeholders(1, len(uniq))+`)`,
		stringArgs(uniq)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(uniq))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, id := range uniq {
		if _, ok := out[id]; !ok {
			return nil, &domain.ProductNotFoundError{ProductID: id}
		}
	}
	return out, nil
}

// DecrementStock takes qty units off the shelf only if that many are there.
// It reports false, and changes nothing, when stock is short.
func (q *Queries) DecrementStock(ctx context.Context, productID string, qty int, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE products SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND stock >= $1
	`, qty, toMillis(now), productID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q *Queries) RestoreStock(ctx context.Context, productID string, qty int, now time.Time) error {
	_, err := q.q.ExecContext(ctx, `
		UPDATE products SET stock = stock + $1, updated_at = $2
		WHERE id = $3
	`, qty, toMillis(now), productID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}

// StockOf reads the current stock, used to explain a failed decrement.
func (q *Queries) StockOf(ctx context.Context, productID string) (int, error) {
	var stock int
	err := q.q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}
	return stock, nil
}
