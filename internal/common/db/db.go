package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"restaurant-pos/internal/common/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Dialect captures the few places where Postgres and SQLite SQL differ.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ShareLock is appended to a SELECT that must block a concurrent writer of
// the same row until the reading transaction ends. SQLite serializes writers
// on its own, so it needs nothing.
func (d Dialect) ShareLock() string {
	if d == Postgres {
		return " FOR SHARE"
	}
	return ""
}

type Conn struct {
	*sql.DB
	Dialect Dialect
}

const (
	maxRetries = 10
	retryDelay = 2 * time.Second
	pingTTL    = 5 * time.Second
)

// Connect opens the configured database, retrying until it answers a ping,
// and applies the bootstrap schema.
func Connect(ctx context.Context, cfg config.DB) (*Conn, error) {
	var (
		conn *Conn
		err  error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		conn, err = OpenSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		conn, err = connectPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := conn.ApplySchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func connectPostgres(ctx context.Context, cfg config.DB) (*Conn, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Pass, cfg.Name, cfg.SSLMode)

	var (
		db  *sql.DB
		err error
	)
	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("pgx", dsn)
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				if cfg.MaxOpenConns > 0 {
					db.SetMaxOpenConns(cfg.MaxOpenConns)
				}
				return &Conn{DB: db, Dialect: Postgres}, nil
			}
			_ = db.Close()
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

// OpenSQLite opens a file-backed SQLite database. A single connection with
// immediate transactions keeps writers strictly serialized.
func OpenSQLite(ctx context.Context, path string) (*Conn, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Conn{DB: db, Dialect: SQLite}, nil
}

// ApplySchema runs the idempotent bootstrap schema for the connection's dialect.
func (c *Conn) ApplySchema(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema/" + string(c.Dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := c.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (c *Conn) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
