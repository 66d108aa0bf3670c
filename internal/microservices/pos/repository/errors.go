package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique-constraint failure on the
// given guard. Postgres names the constraint; SQLite names the columns.
func uniqueViolation(err error, pgConstraint, sqliteColumns string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == pgConstraint
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code != sqlite3.SQLITE_CONSTRAINT && code != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return false
		}
		return strings.Contains(sqliteErr.Error(), sqliteColumns)
	}
	return false
}
