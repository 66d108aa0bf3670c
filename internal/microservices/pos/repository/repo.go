package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"restaurant-pos/internal/common/db"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is what the services need from storage: one-shot reads, and a
// transaction scope for every mutation.
type Store interface {
	Read() *Queries
	InTx(ctx context.Context, fn func(q *Queries) error) error
}

// Queries runs statements against either the pool or an open transaction.
type Queries struct {
	q       querier
	dialect db.Dialect
}

type Repository struct {
	conn *db.Conn
	read *Queries
}

func New(conn *db.Conn) *Repository {
	return &Repository{conn: conn, read: &Queries{q: conn.DB, dialect: conn.Dialect}}
}

func (r *Repository) Read() *Queries { return r.read }

// InTx commits when fn returns nil and rolls back otherwise. Queries handed
// to fn must not escape it.
func (r *Repository) InTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Queries{q: tx, dialect: r.conn.Dialect}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
