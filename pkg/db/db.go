package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names a database/sql driver the store knows how to talk to.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// DB is an open store connection together with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the store. For sqlite the usual pragmas are applied and
// an in-memory database is pinned to a single connection.
func Open(driver, dsn string) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
			conn.SetMaxOpenConns(1)
		}
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		if dsn != ":memory:" {
			pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
		}
		for _, p := range pragmas {
			if _, err := conn.Exec(p); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}
	} else if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &DB{DB: conn, Dialect: dialect}, nil
}

// Bind returns an executor that runs queries written with ? placeholders
// against ex in this store's dialect.
func (d *DB) Bind(ex DBExecutor) DBExecutor {
	if d == nil || d.Dialect != Postgres {
		return ex
	}
	return dollarExecutor{ex}
}

// Executor is Bind applied to the connection itself.
func (d *DB) Executor() DBExecutor {
	return d.Bind(d.DB)
}

// InitDB runs the schema migrations.
func InitDB(ctx context.Context, db DBExecutor) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// dollarExecutor rewrites ? placeholders to $1, $2, ... for postgres.
type dollarExecutor struct{ ex DBExecutor }

func (d dollarExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.ex.ExecContext(ctx, rebind(query), args...)
}

func (d dollarExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.ex.QueryContext(ctx, rebind(query), args...)
}

func (d dollarExecutor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.ex.QueryRowContext(ctx, rebind(query), args...)
}

// rebind leaves ? inside single-quoted literals alone.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
