package pgdrift

import (
	"context"
	"fmt"

	"github.com/peterldowns/pgdrift/internal/pgtools"
)

// Dialect describes the SQL differences between the databases that can hold a
// migrations ledger. Use [Postgres] or [SQLite].
type Dialect interface {
	// Name is a short human-readable name, used in logs.
	Name() string

	placeholder(n int) string
	table(name string) string
	createSchema(name string) string
	createTable(name string) string
	tableExists(ctx context.Context, db Executor, name string) (bool, error)
}

var (
	// Postgres is the dialect for PostgreSQL, used with either the pgx or
	// lib/pq drivers.
	Postgres Dialect = postgresDialect{}
	// SQLite is the dialect for SQLite, used with modernc.org/sqlite.
	// Schema qualifiers in table names are ignored.
	SQLite Dialect = sqliteDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) table(name string) string {
	schema, table := pgtools.ParseTableName(name)
	if schema == "" {
		return pgtools.Identifier(table)
	}
	return pgtools.Identifier(schema, table)
}

func (postgresDialect) createSchema(name string) string {
	schema, _ := pgtools.ParseTableName(name)
	if schema == "" {
		return ""
	}
	return fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgtools.Identifier(schema))
}

func (d postgresDialect) createTable(name string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			migration_name TEXT PRIMARY KEY,
			migration_date TIMESTAMP NOT NULL DEFAULT now()
		)
	`, d.table(name))
}

func (d postgresDialect) tableExists(ctx context.Context, db Executor, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, d.table(name)).Scan(&exists)
	return exists, err
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) table(name string) string {
	_, table := pgtools.ParseTableName(name)
	return pgtools.Identifier(table)
}

func (sqliteDialect) createSchema(string) string { return "" }

func (d sqliteDialect) createTable(name string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			migration_name TEXT PRIMARY KEY,
			migration_date TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, d.table(name))
}

func (sqliteDialect) tableExists(ctx context.Context, db Executor, name string) (bool, error) {
	_, table := pgtools.ParseTableName(name)
	var count int
	err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	return count > 0, err
}
