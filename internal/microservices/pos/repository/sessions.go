package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-pos/internal/domain"
)

// ErrSessionCodeTaken means the generated code collided with an existing
// session. The caller generates a new code and tries again.
var ErrSessionCodeTaken = errors.New("session code already taken")

const sessionColumns = `s.id, s.code, s.table_id, s.status, s.created_at, s.updated_at, s.closed_at, t.number`

const sessionFrom = ` FROM sessions s JOIN tables t ON t.id = s.table_id `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s                domain.Session
		created, updated int64
		closed           sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Code, &s.TableID, &s.Status, &created, &updated, &closed, &s.TableNumber); err != nil {
		return domain.Session{}, err
	}
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	s.ClosedAt = fromNullMillis(closed)
	return s, nil
}

// InsertSession relies on the partial unique index over ACTIVE sessions, so
// two concurrent inserts for one table cannot both succeed.
func (q *Queries) InsertSession(ctx context.Context, s domain.Session) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO sessions (id, code, table_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Code, s.TableID, s.Status, toMillis(s.CreatedAt), toMillis(s.UpdatedAt))
	switch {
	case err == nil:
		return nil
	case uniqueViolation(err, "ux_sessions_active_table", "sessions.table_id"):
		return domain.ErrSessionAlreadyActive
	case uniqueViolation(err, "ux_sessions_code", "sessions.code"):
		return ErrSessionCodeTaken
	default:
		return fmt.Errorf("failed to insert session: %w", err)
	}
}

func (q *Queries) getSessionWhere(ctx context.Context, where string, args ...any) (domain.Session, error) {
	s, err := scanSession(q.q.QueryRowContext(ctx, `SELECT `+sessionColumns+sessionFrom+`WHERE `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (q *Queries) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return q.getSessionWhere(ctx, `s.id = $1`, id)
}

func (q *Queries) GetSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	return q.getSessionWhere(ctx, `s.code = $1`, strings.ToUpper(code))
}

func (q *Queries) ActiveSessionForTable(ctx context.Context, tableID string) (domain.Session, error) {
	return q.getSessionWhere(ctx, `s.table_id = $1 AND s.status = 'ACTIVE'`, tableID)
}

func (q *Queries) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+sessionColumns+sessionFrom+`ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LockActiveSession stamps the session row inside the caller's transaction.
// On Postgres this holds the row lock until commit, so a concurrent bill
// settlement cannot close the session underneath a new order.
func (q *Queries) LockActiveSession(ctx context.Context, id string, now time.Time) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE sessions SET updated_at = $1
		WHERE id = $2 AND status = 'ACTIVE'
	`, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidSession
	}
	return nil
}

// LockSession stamps the session row whatever its status. It returns
// ErrSessionNotFound for an unknown id.
func (q *Queries) LockSession(ctx context.Context, id string, now time.Time) error {
	res, err := q.q.ExecContext(ctx, `UPDATE sessions SET updated_at = $1 WHERE id = $2`, toMillis(now), id)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// CloseSessionIfIdle flips the session to CLOSED unless one of its orders is
// still in the kitchen. It reports false when an order blocked the close.
// The caller must already hold the session row (LockSession): on Postgres
// the NOT EXISTS is evaluated against this statement's snapshot, so orders
// committed while it waited for the row lock would go unseen.
func (q *Queries) CloseSessionIfIdle(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE sessions
		SET status = 'CLOSED', closed_at = COALESCE(closed_at, $1), updated_at = $1
		WHERE id = $2 AND NOT EXISTS (
			SELECT 1 FROM orders o
			WHERE o.session_id = $2 AND o.status IN (`+statusList(domain.KitchenStatuses)+`)
		)
	`, toMillis(now), id)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CloseSession closes an active session unconditionally. Bill settlement
// uses it after it has claimed every outstanding order.
func (q *Queries) CloseSession(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE sessions SET status = 'CLOSED', closed_at = $1, updated_at = $1
		WHERE id = $2 AND status = 'ACTIVE'
	`, toMillis(now), id)
	if err != nil {
		return false, fmt.Errorf("failed to close session: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// statusList renders constant statuses as a SQL literal list.
func statusList(statuses []domain.OrderStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ", ")
}
