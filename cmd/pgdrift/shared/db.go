package shared

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "github.com/lib/pq"              // postgres driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/peterldowns/pgdrift"
)

const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// OpenDB opens the configured database and returns the dialect to manage its
// migrations table with.
func OpenDB() (*sql.DB, pgdrift.Dialect, error) {
	dbVar := State.Database()
	if err := Validate(dbVar); err != nil {
		return nil, nil, err
	}
	driver, dsn, dialect, err := resolveDriver(dbVar.Value(), State.Driver().Value())
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, dialect, nil
}

// resolveDriver picks the database/sql driver for a connection string.
// "sqlite:" and "file:" URLs use SQLite; everything else is Postgres, through
// lib/pq when driver is "postgres" or "pq" and pgx otherwise.
func resolveDriver(connstr, driver string) (string, string, pgdrift.Dialect, error) {
	switch {
	case strings.HasPrefix(connstr, "sqlite:"):
		return "sqlite", strings.TrimPrefix(strings.TrimPrefix(connstr, "sqlite:"), "//"), pgdrift.SQLite, nil
	case strings.HasPrefix(connstr, "file:"):
		return "sqlite", connstr, pgdrift.SQLite, nil
	}
	switch driver {
	case DriverPq, "pq":
		return DriverPq, connstr, pgdrift.Postgres, nil
	case DriverPgx, "":
		dsn, err := setDefaultStatementCachingParameter(connstr)
		if err != nil {
			return "", "", nil, err
		}
		return DriverPgx, dsn, pgdrift.Postgres, nil
	default:
		return "", "", nil, fmt.Errorf("unknown driver: %s", driver)
	}
}

// If the user has not explicitly specified a pgx statement caching parameter
// in their connection string, set it to "exec", which will work correctly even
// when connecting to bouncers/poolers like Pgbouncer. The default value pgx
// chooses is "cache_statement", which breaks when you connect to a pooler.
func setDefaultStatementCachingParameter(connstr string) (string, error) {
	eurl, err := url.Parse(connstr)
	if err != nil {
		return "", fmt.Errorf("failed to parse 'database' URL: %w", err)
	}
	query := eurl.Query()
	// parameter name and value come from the pgx code:
	// https://pkg.go.dev/github.com/jackc/pgx/v5#QueryExecMode
	queryModeParam := "default_query_exec_mode"
	execModeValue := "exec"
	if !query.Has(queryModeParam) {
		query.Add(queryModeParam, execModeValue)
	}
	eurl.RawQuery = query.Encode()
	return eurl.String(), nil
}

// Dialect returns the dialect of the configured database without opening it.
func Dialect() (pgdrift.Dialect, error) {
	dbVar := State.Database()
	if err := Validate(dbVar); err != nil {
		return nil, err
	}
	_, _, dialect, err := resolveDriver(dbVar.Value(), State.Driver().Value())
	return dialect, err
}
