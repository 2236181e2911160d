// sessionlock provides application level distributed locks via advisory
// locks in PostgreSQL.
//
// - https://www.postgresql.org/docs/current/explicit-locking.html#ADVISORY-LOCKS
package sessionlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// IDPrefix is prepended to any given lock name when computing the integer lock
// ID, to help prevent collisions with other clients that may be acquiring their
// own locks.
const IDPrefix string = "sessionlock-"

// SpinWait is the amount of time that sessionlock will sleep between attempts
// to acquire an in-use session lock with `pg_try_advisory_lock`.
const SpinWait time.Duration = 100 * time.Millisecond

// ID consistently hashes a string to a non-negative integer that can be used
// with pg_advisory_lock() and pg_advisory_unlock().
func ID(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(IDPrefix + name))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// With opens a connection from db, acquires the named advisory lock on it,
// calls cb with that same connection, then releases the lock.
//
// With spins using `pg_try_advisory_lock` until the lock is acquired or ctx
// expires, so that `lock_timeout` and `statement_timeout` never fire while
// waiting.
func With(ctx context.Context, db *sql.DB, lockName string, cb func(*sql.Conn) error) (final error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sessionlock(%s) failed to open conn: %w", lockName, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			final = multierror.Append(final, fmt.Errorf("sessionlock(%s) failed to close conn: %w", lockName, err)).ErrorOrNil()
		}
	}()

	id := ID(lockName)
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, id).Scan(&locked); err != nil {
			return fmt.Errorf("sessionlock(%s) failed to lock: %w", lockName, err)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(SpinWait):
		}
	}

	defer func() {
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, id); err != nil {
			final = multierror.Append(final, fmt.Errorf("sessionlock(%s) failed to unlock: %w", lockName, err)).ErrorOrNil()
		}
	}()
	return cb(conn)
}
