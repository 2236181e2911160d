// withdb is a simplified way of creating throwaway databases for tests. It is
// an internal helper and should not be relied upon externally.
package withdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	_ "modernc.org/sqlite" // sqlite driver
)

// WithDB is a helper for writing postgres-backed tests. It will:
// - connect to a local postgres server (see docker-compose.yml)
// - create a new, empty test database with a unique name
// - open a connection to that test database
// - run the `cb` function
// - remove the test database
//
// The caller must have registered driverName, usually by importing
// github.com/jackc/pgx/v5/stdlib or github.com/lib/pq.
func WithDB(ctx context.Context, driverName string, cb func(*sql.DB) error) (final error) {
	return WithDBParams(ctx, driverName, "", cb)
}

// WithDBParams is like [WithDB], but allows you to pass optional postgres
// connection string parameters.
func WithDBParams(ctx context.Context, driverName string, addlParams string, cb func(*sql.DB) error) (final error) {
	db, err := sql.Open(driverName, ConnectionString("postgres", ""))
	if err != nil {
		return fmt.Errorf("withdb(postgres) failed to open: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			err = fmt.Errorf("withdb(postgres) failed to close: %w", err)
			final = multierror.Append(final, err).ErrorOrNil()
		}
	}()

	testDBName := randomID("test")
	query := fmt.Sprintf("CREATE DATABASE %s", testDBName)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("withdb(%s) failed to create: %w", testDBName, err)
	}
	testDB, err := sql.Open(driverName, ConnectionString(testDBName, addlParams))
	if err != nil {
		return fmt.Errorf("withdb(%s) failed to open: %w", testDBName, err)
	}
	defer func() {
		if err := testDB.Close(); err != nil {
			err = fmt.Errorf("withdb(%s) failed to close: %w", testDBName, err)
			final = multierror.Append(final, err).ErrorOrNil()
		}
		query := fmt.Sprintf("DROP DATABASE %s", testDBName)
		if _, err = db.ExecContext(ctx, query); err != nil {
			err = fmt.Errorf("withdb(%s) failed to drop: %w", testDBName, err)
			final = multierror.Append(final, err).ErrorOrNil()
		}
	}()
	return cb(testDB)
}

// WithSQLite opens a fresh SQLite database in a temporary file, runs cb, then
// closes and removes it.
func WithSQLite(ctx context.Context, cb func(*sql.DB) error) (final error) {
	dir, err := os.MkdirTemp("", "withdb-sqlite-")
	if err != nil {
		return fmt.Errorf("withdb(sqlite) failed to create dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			final = multierror.Append(final, fmt.Errorf("withdb(sqlite) failed to remove dir: %w", err)).ErrorOrNil()
		}
	}()
	db, err := sql.Open("sqlite", filepath.Join(dir, "test.db"))
	if err != nil {
		return fmt.Errorf("withdb(sqlite) failed to open: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			final = multierror.Append(final, fmt.Errorf("withdb(sqlite) failed to close: %w", err)).ErrorOrNil()
		}
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("withdb(sqlite) failed to ping: %w", err)
	}
	return cb(db)
}

// RequirePostgres skips the calling test if the local test server cannot be
// reached with driverName.
func RequirePostgres(t testing.TB, driverName string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := sql.Open(driverName, ConnectionString("postgres", ""))
	if err != nil {
		t.Skipf("postgres unavailable: %s", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("postgres unavailable: %s", err)
	}
}

// ConnectionString returns a connection string to a database on the local
// test server. The username, password, and port are hardcoded based on the
// docker-compose.yml in the root of this repository, unless
// PGDRIFT_TEST_HOSTPORT overrides the host and port.
func ConnectionString(dbname string, addlParams string) string {
	hostport := os.Getenv("PGDRIFT_TEST_HOSTPORT")
	if hostport == "" {
		hostport = "localhost:5433"
	}
	connstr := fmt.Sprintf("postgres://postgres:password@%s/%s?sslmode=disable", hostport, dbname)
	if addlParams != "" {
		connstr += "&" + addlParams
	}
	return connstr
}

// randomID returns a database name that is unlikely to collide with any
// other test's.
func randomID(prefix string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%x", prefix, id[:4])
}
