package pgdrift_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/internal/withdb"
)

var opsMigrations = []pgdrift.Migration{ //nolint:gochecknoglobals
	{Name: "0001_initial.sql", SQL: "CREATE TABLE users (id INTEGER PRIMARY KEY);"},
	{Name: "0002_companies.sql", SQL: "CREATE TABLE companies (id INTEGER PRIMARY KEY);"},
	{Name: "0003_posts.sql", SQL: "CREATE TABLE posts (id INTEGER PRIMARY KEY);"},
}

func TestMarkApplied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		migrator := newSQLiteMigrator(t, opsMigrations...)

		marked, err := migrator.MarkApplied(ctx, db, "0002_companies.sql")
		assert.Nil(t, err)
		check.Equal(t, []string{"0001_initial.sql", "0002_companies.sql"}, pgdrift.Names(marked))

		// Nothing was executed.
		check.Equal(t, false, tableExists(ctx, t, db, "users"))
		check.Equal(t, false, tableExists(ctx, t, db, "companies"))

		plan, err := migrator.Plan(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, []string{"0003_posts.sql"}, pgdrift.Names(plan))

		// Marking an already-recorded migration does nothing.
		marked, err = migrator.MarkApplied(ctx, db, "0001_initial.sql")
		assert.Nil(t, err)
		check.Equal(t, 0, len(marked))
		return nil
	})
	assert.Nil(t, err)
}

func TestMarkAllApplied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		migrator := newSQLiteMigrator(t, opsMigrations...)

		marked, err := migrator.MarkApplied(ctx, db, "")
		assert.Nil(t, err)
		check.Equal(t, pgdrift.Names(opsMigrations), pgdrift.Names(marked))

		applied, err := migrator.Migrate(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, 0, len(applied))
		return nil
	})
	assert.Nil(t, err)
}

func TestMarkAppliedUnknownMigration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		migrator := newSQLiteMigrator(t, opsMigrations...)
		marked, err := migrator.MarkApplied(ctx, db, "0009_missing.sql")
		check.Error(t, err)
		check.Equal(t, 0, len(marked))

		ledger, err := migrator.Applied(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, 0, len(ledger))
		return nil
	})
	assert.Nil(t, err)
}

func TestMarkUnapplied(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		migrator := newSQLiteMigrator(t, opsMigrations...)
		_, err := migrator.Migrate(ctx, db)
		assert.Nil(t, err)

		removed, err := migrator.MarkUnapplied(ctx, db, "0002_companies.sql")
		assert.Nil(t, err)
		check.Equal(t, []string{"0002_companies.sql", "0003_posts.sql"}, appliedNames(removed))

		ledger, err := migrator.Applied(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, []string{"0001_initial.sql"}, appliedNames(ledger))

		// The schema is left alone.
		check.True(t, tableExists(ctx, t, db, "companies"))
		check.True(t, tableExists(ctx, t, db, "posts"))
		return nil
	})
	assert.Nil(t, err)
}

func TestMarkUnappliedRepairsOrphanedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		_, err := newSQLiteMigrator(t, opsMigrations...).Migrate(ctx, db)
		assert.Nil(t, err)

		// The last file was deleted, so strict mode refuses to continue.
		migrator := newSQLiteMigrator(t, opsMigrations[:2]...)
		migrator.Strict = true
		_, err = migrator.Plan(ctx, db)
		check.Error(t, err)

		removed, err := migrator.MarkUnapplied(ctx, db, "0003_posts.sql")
		assert.Nil(t, err)
		check.Equal(t, []string{"0003_posts.sql"}, appliedNames(removed))

		plan, err := migrator.Plan(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, 0, len(plan))
		return nil
	})
	assert.Nil(t, err)
}

func TestMarkUnappliedErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		migrator := newSQLiteMigrator(t, opsMigrations...)

		// No migrations table yet.
		_, err := migrator.MarkUnapplied(ctx, db, "0001_initial.sql")
		check.Error(t, err)

		_, err = migrator.Migrate(ctx, db)
		assert.Nil(t, err)
		_, err = migrator.MarkUnapplied(ctx, db, "0009_missing.sql")
		check.Error(t, err)

		ledger, err := migrator.Applied(ctx, db)
		assert.Nil(t, err)
		check.Equal(t, 3, len(ledger))
		return nil
	})
	assert.Nil(t, err)
}
