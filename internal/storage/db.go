// Package storage provides the SQL-backed configuration store.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Dialect selects placeholder syntax.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Open opens the configured database and applies pool settings.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		driver, dsn string
		maxOpen     int
	)

	switch Dialect(cfg.Driver) {
	case DialectSQLite:
		driver, dsn, maxOpen = "sqlite3", cfg.SQLite.Path, cfg.SQLite.MaxOpenConns
	case DialectPostgres:
		driver, dsn, maxOpen = "postgres", cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unsupported database driver %q", cfg.Driver), nil)
	}

	if dsn == "" {
		return nil, domain.ConfigError(fmt.Sprintf("%s connection string is empty", cfg.Driver), nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if Dialect(cfg.Driver) == DialectPostgres && cfg.Postgres.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	return db, nil
}

// placeholder returns the n-th (1-based) bind parameter for the dialect.
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// inClause renders "column IN (...)" starting at bind parameter start.
func (d Dialect) inClause(column string, count, start int) string {
	params := make([]string, count)
	for i := range params {
		params[i] = d.placeholder(start + i)
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(params, ", "))
}

func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return domain.ConfigError(fmt.Sprintf("invalid table name %q", name), nil)
	}
	return nil
}
