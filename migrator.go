package pgdrift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/peterldowns/pgdrift/internal/pgtools"
	"github.com/peterldowns/pgdrift/internal/sessionlock"
	"github.com/peterldowns/pgdrift/logging"
)

const (
	// DefaultTableName is the default name of the migrations table (with
	// schema) that pgdrift uses to store a record of applied migrations.
	DefaultTableName string = "public.pgdrift_migrations"

	// sessionLockPrefix is prefix used by pgdrift to help prevent conflicts
	// between its lock and other users of Postgres advisory locks.
	sessionLockPrefix string = "pgdrift-"
)

// Executor is satisfied by *sql.DB as well as *sql.Conn. [Migrator.Migrate]
// runs everything on a single *sql.Conn; the other methods accept an Executor
// so that they can more easily be used by an external caller.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Migrator should be instantiated with [NewMigrator] rather than used directly.
// It contains the state necessary to perform migrations-related operations.
type Migrator struct {
	// Migrations is the full set of migrations that describe the desired state
	// of the database. They do not need to be sorted.
	Migrations []Migration
	// Logger is used by the Migrator to log messages as it operates.
	//
	// [NewMigrator] defaults it to `nil`, which will prevent any messages from
	// being logged.
	Logger Logger
	// TableName is the table that this migrator should use to keep track of
	// applied migrations.
	//
	// [NewMigrator] defaults it to [DefaultTableName].
	TableName string
	// Dialect selects the SQL used to manage the migrations table.
	//
	// [NewMigrator] defaults it to [Postgres].
	Dialect Dialect
	// Strict makes ledger records without a matching migration file an error
	// instead of a warning.
	Strict bool
	// Lock holds a Postgres advisory lock for the duration of
	// [Migrator.Migrate]. It has no effect with the [SQLite] dialect.
	Lock bool
}

// NewMigrator creates a [Migrator] and sets appropriate default values for all
// configurable fields:
//
//   - Logger: `nil`, no messages will be logged
//   - TableName: [DefaultTableName]
//   - Dialect: [Postgres]
//   - Strict: false
//   - Lock: false
//
// To configure these fields, just set the values on the struct.
func NewMigrator(migrations []Migration) *Migrator {
	return &Migrator{
		Migrations: migrations,
		TableName:  DefaultTableName,
		Dialect:    Postgres,
	}
}

// Migrate brings the database up to date with the migrations and returns the
// migrations that were applied by this call, in the order they were applied.
//
// On a single connection it:
//
//   - creates the migrations table if it does not exist
//   - reads the names recorded in the migrations table
//   - reconciles them against the migration names (see [Reconciler])
//   - applies every pending migration in one transaction (see [Migrator.Apply])
//
// If the recorded history does not match the migrations, Migrate returns a
// [*DivergenceError] and applies nothing. If any pending migration fails, the
// whole batch is rolled back and a [*MigrationExecutionError] is returned.
// Running Migrate again with no new migrations is a no-op.
func (m *Migrator) Migrate(ctx context.Context, db *sql.DB) ([]Migration, error) {
	var applied []Migration
	err := m.withConn(ctx, db, func(conn *sql.Conn) error {
		if err := m.ensureMigrationsTable(ctx, conn); err != nil {
			return err
		}
		plan, err := m.Plan(ctx, conn)
		if err != nil {
			return err
		}
		if err := m.Apply(ctx, conn, plan); err != nil {
			return err
		}
		applied = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// Plan shows which migrations, if any, would be applied, in the order that they
// would be applied in.
//
// The names recorded in the migrations table must be a prefix of the sorted
// migration names; the plan is everything after that prefix. For instance, if
// these migrations had been applied:
//
//   - 001_initial.sql
//   - 002_create_users.sql
//
// and a new migration "002_create_companies.sql" is merged, Plan returns a
// [*DivergenceError] at position 1 rather than applying it out of order.
func (m *Migrator) Plan(ctx context.Context, db Executor) ([]Migration, error) {
	migrations := slices.Clone(m.Migrations)
	SortByName(migrations)
	warnings, err := checkNames(migrations)
	if err != nil {
		return nil, err
	}
	for _, name := range warnings {
		m.warn(ctx, "migration name has no numeric prefix and may sort unexpectedly", LogField{Key: "migration_name", Value: name})
	}
	ledger, err := m.Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	applied := make([]string, 0, len(ledger))
	for _, record := range ledger {
		applied = append(applied, record.Name)
	}
	files := Names(migrations)
	for i := len(files); i < len(applied); i++ {
		m.warn(ctx, "found applied migration not present on disk",
			LogField{Key: "migration_name", Value: ledger[i].Name},
			LogField{Key: "migration_date", Value: ledger[i].AppliedAt},
		)
	}
	start, err := Reconciler{Strict: m.Strict}.Reconcile(applied, files)
	if err != nil {
		m.error(ctx, err, "migration history does not match migration files")
		return nil, err
	}
	plan := migrations[start:]
	m.info(ctx, fmt.Sprintf("planning to apply %d migrations", len(plan)))
	for i, migration := range plan {
		m.debug(ctx, fmt.Sprintf("%d", i), LogField{Key: "migration_name", Value: migration.Name})
	}
	return plan, nil
}

// Applied returns the records in the migrations table ordered by name, byte
// by byte, the same order as [SortByName].
//
// If the migrations table does not exist, this will return an empty list
// without an error.
func (m *Migrator) Applied(ctx context.Context, db Executor) ([]AppliedMigration, error) {
	exists, err := m.dialect().tableExists(ctx, db, m.TableName)
	if err != nil {
		return nil, fmt.Errorf("hasMigrationsTable: %w", err)
	}
	if !exists {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT migration_name, migration_date
		FROM %s ORDER BY migration_name ASC
	`, m.dialect().table(m.TableName))
	m.debug(ctx, query)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("applied: %w", err)
	}
	return scanAppliedMigrations(rows)
}

// Apply runs pending in a single transaction. For each migration, in the
// order given, it executes the migration's SQL and then records the migration
// in the migrations table. If every migration succeeds the transaction is
// committed; otherwise it is rolled back, leaving both the schema and the
// migrations table as they were, and the error is a
// [*MigrationExecutionError].
//
// An empty pending list does not open a transaction.
func (m *Migrator) Apply(ctx context.Context, db Executor, pending []Migration) error {
	if len(pending) == 0 {
		m.info(ctx, "no migrations to apply")
		return nil
	}
	startedAt := time.Now().UTC()
	insert := fmt.Sprintf(
		`INSERT INTO %s (migration_name) VALUES (%s)`,
		m.dialect().table(m.TableName),
		m.dialect().placeholder(1),
	)
	err := m.inTx(ctx, db, func(tx *sql.Tx) error {
		for _, migration := range pending {
			fields := []LogField{{Key: "migration_name", Value: migration.Name}}
			m.info(ctx, "applying migration", fields...)
			if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
				for key, val := range pgtools.ErrorData(err) {
					fields = append(fields, LogField{Key: key, Value: val})
				}
				m.error(ctx, err, "failed to apply migration", fields...)
				return &MigrationExecutionError{Name: migration.Name, Err: err}
			}
			m.debug(ctx, insert, fields...)
			if _, err := tx.ExecContext(ctx, insert, migration.Name); err != nil {
				m.error(ctx, err, "failed to mark migration as applied", fields...)
				return &MigrationExecutionError{Name: migration.Name, Err: fmt.Errorf("mark as applied: %w", err)}
			}
		}
		return nil
	})
	if err != nil {
		var execErr *MigrationExecutionError
		if !errors.As(err, &execErr) {
			err = &MigrationExecutionError{Err: err}
		}
		m.error(ctx, err, "rolled back migrations", LogField{Key: "count", Value: len(pending)})
		return err
	}
	m.info(ctx, "applied migrations",
		LogField{Key: "count", Value: len(pending)},
		LogField{Key: "execution_time_ms", Value: time.Since(startedAt).Milliseconds()},
	)
	return nil
}

// ensureMigrationsTable will create the migrations table if it does not exist.
func (m *Migrator) ensureMigrationsTable(ctx context.Context, db Executor) error {
	m.info(ctx, "ensuring migrations table exists", LogField{Key: "table_name", Value: m.TableName})
	if query := m.dialect().createSchema(m.TableName); query != "" {
		m.debug(ctx, query)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("ensureMigrationsTable/create schema: %w", err)
		}
	}
	query := m.dialect().createTable(m.TableName)
	m.debug(ctx, query)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensureMigrationsTable: %w", err)
	}
	return nil
}

// withConn calls cb with a single connection from db, holding the advisory
// lock if m.Lock is set.
func (m *Migrator) withConn(ctx context.Context, db *sql.DB, cb func(*sql.Conn) error) (final error) {
	if m.Lock && m.dialect() == Postgres {
		lockName := sessionLockPrefix + m.TableName
		m.debug(ctx, "acquiring advisory lock", LogField{Key: "lock_name", Value: lockName})
		return sessionlock.With(ctx, db, lockName, cb)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open conn: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			final = multierror.Append(final, fmt.Errorf("close conn: %w", err)).ErrorOrNil()
		}
	}()
	return cb(conn)
}

func (m *Migrator) inTx(ctx context.Context, db Executor, cb func(tx *sql.Tx) error) (final error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		msg := "tx open"
		m.error(ctx, err, msg)
		return fmt.Errorf("%s: %w", msg, err)
	}
	defer func() {
		if final != nil {
			if err := tx.Rollback(); err != nil {
				final = multierror.Append(final, fmt.Errorf("tx rollback: %w", err))
			}
		} else {
			if err := tx.Commit(); err != nil {
				final = fmt.Errorf("tx commit: %w", err)
			}
		}
	}()
	return cb(tx)
}

func (m *Migrator) dialect() Dialect {
	if m.Dialect == nil {
		return Postgres
	}
	return m.Dialect
}

func (m *Migrator) log(ctx context.Context, level LogLevel, msg string, args ...LogField) {
	if hl, ok := m.Logger.(Helper); ok {
		hl.Helper()
	}
	logging.Emit(ctx, m.Logger, level, msg, args...)
}

func (m *Migrator) info(ctx context.Context, msg string, args ...LogField) {
	if logger, ok := m.Logger.(Helper); ok {
		logger.Helper()
	}
	m.log(ctx, LogLevelInfo, msg, args...)
}

func (m *Migrator) debug(ctx context.Context, msg string, args ...LogField) {
	if logger, ok := m.Logger.(Helper); ok {
		logger.Helper()
	}
	m.log(ctx, LogLevelDebug, msg, args...)
}

func (m *Migrator) warn(ctx context.Context, msg string, args ...LogField) {
	if logger, ok := m.Logger.(Helper); ok {
		logger.Helper()
	}
	m.log(ctx, LogLevelWarning, msg, args...)
}

func (m *Migrator) error(ctx context.Context, err error, msg string, args ...LogField) {
	if logger, ok := m.Logger.(Helper); ok {
		logger.Helper()
	}
	logging.EmitError(ctx, m.Logger, err, msg, args...)
}

func scanAppliedMigrations(rows *sql.Rows) ([]AppliedMigration, error) {
	defer rows.Close()
	var migrations []AppliedMigration
	for rows.Next() {
		var migration AppliedMigration
		var appliedAt timestamp
		if err := rows.Scan(&migration.Name, &appliedAt); err != nil {
			return nil, err
		}
		migration.AppliedAt = time.Time(appliedAt).UTC()
		migrations = append(migrations, migration)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// The database orders by its own collation, which can disagree with the
	// byte order that [SortByName] gives the migration files.
	slices.SortFunc(migrations, func(a, b AppliedMigration) int {
		return strings.Compare(a.Name, b.Name)
	})
	return migrations, nil
}

// timestamp scans a migration_date column. Postgres drivers return a
// time.Time; SQLite may return the CURRENT_TIMESTAMP text instead.
type timestamp time.Time

var timestampLayouts = []string{
	time.DateTime,
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*ts = timestamp(v)
		return nil
	case []byte:
		return ts.parse(string(v))
	case string:
		return ts.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into migration_date", src)
	}
}

func (ts *timestamp) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts = timestamp(t)
			return nil
		}
	}
	return fmt.Errorf("cannot parse migration_date %q", s)
}
