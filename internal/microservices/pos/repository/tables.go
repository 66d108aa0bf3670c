package repository

import (
	"context"
	"fmt"

	"restaurant-pos/internal/domain"
)

func (q *Queries) InsertTable(ctx context.Context, t domain.Table) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO tables (id, number, is_active, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.Number, t.IsActive, toMillis(t.CreatedAt))
	if uniqueViolation(err, "tables_number_key", "tables.number") {
		return fmt.Errorf("%w: table number %d already exists", domain.ErrInvalidInput, t.Number)
	}
	if err != nil {
		return fmt.Errorf("failed to insert table: %w", err)
	}
	return nil
}

func (q *Queries) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, number, is_active, created_at
		FROM tables
		WHERE is_active = TRUE
		ORDER BY number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Table, 0)
	for rows.Next() {
		var (
			t       domain.Table
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Number, &t.IsActive, &created); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		t.CreatedAt = fromMillis(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// LockTable stamps an active table's row inside the caller's transaction,
// so session creation and archiving serialize on it. Unknown and archived
// tables yield ErrTableNotFound.
func (q *Queries) LockTable(ctx context.Context, id string) error {
	res, err := q.q.ExecContext(ctx, `UPDATE tables SET number = number WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("failed to lock table: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTableNotFound
	}
	return nil
}

// ArchiveTables soft-deletes tables that have no active session. It touches
// nothing and returns ErrTableHasActiveSession if any of them has one. The
// rows are locked before the session count, which then sees every session
// committed by a creator that held one of them.
func (q *Queries) ArchiveTables(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := q.q.ExecContext(ctx,
		`UPDATE tables SET number = number WHERE id IN (`+placeholders(1, len(ids))+`)`,
		stringArgs(ids)...,
	); err != nil {
		return 0, fmt.Errorf("failed to lock tables: %w", err)
	}

	var active int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status = 'ACTIVE' AND table_id IN (`+placeholders(1, len(ids))+`)`,
		stringArgs(ids)...,
	).Scan(&active)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	if active > 0 {
		return 0, domain.ErrTableHasActiveSession
	}

	res, err := q.q.ExecContext(ctx,
		`UPDATE tables SET is_active = FALSE WHERE id IN (`+placeholders(1, len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive tables: %w", err)
	}
	return rowsAffected(res)
}
