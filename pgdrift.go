// Package pgdrift applies file-based SQL migrations and keeps a ledger of the
// migrations that have been applied.
//
// Migrations are the .sql files at the top level of a directory, applied in
// ascending name order. The ledger must always be a prefix of those names: a
// renamed, deleted, or out-of-order file is reported as a [*DivergenceError]
// instead of being silently skipped or applied. Every pending migration is
// applied in one transaction, so a failure leaves the database exactly as it
// was.
//
// The shadow subpackage builds on this to compare the schema produced by the
// migrations against a live database.
package pgdrift

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
)

// Migrate loads the migrations in dir and applies any that are pending. See
// [Migrator.Migrate].
func Migrate(ctx context.Context, db *sql.DB, dir fs.FS, logger Logger) ([]Migration, error) {
	migrations, err := Load(dir)
	if err != nil {
		return nil, err
	}
	migrator := NewMigrator(migrations)
	migrator.Logger = logger
	return migrator.Migrate(ctx, db)
}

// Plan loads the migrations in dir and returns the ones that would be applied.
// See [Migrator.Plan].
func Plan(ctx context.Context, db *sql.DB, dir fs.FS, logger Logger) ([]Migration, error) {
	migrations, err := Load(dir)
	if err != nil {
		return nil, err
	}
	migrator := NewMigrator(migrations)
	migrator.Logger = logger
	return migrator.Plan(ctx, db)
}

// Applied returns the records in the default migrations table.
func Applied(ctx context.Context, db *sql.DB, logger Logger) ([]AppliedMigration, error) {
	migrator := NewMigrator(nil)
	migrator.Logger = logger
	return migrator.Applied(ctx, db)
}

// Load receives a filesystem (such as an embed.FS or os.DirFS) and returns
// every file at its top level with a .sql extension as a [Migration], sorted
// by name. The name is the filename and the SQL is the file's contents.
// Subdirectories are not searched.
func Load(filesystem fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(filesystem, ".")
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(filesystem, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Name: entry.Name(),
			SQL:  string(data),
		})
	}
	SortByName(migrations)
	return migrations, nil
}
