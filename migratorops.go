package pgdrift

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// MarkApplied (⚠️ danger) is a manual operation that records pending
// migrations as applied without running them. Every pending migration up to
// and including through is recorded, so the migrations table stays a prefix of
// the migration names. An empty through records every pending migration.
//
// This exists to adopt a database whose schema was created some other way,
// for instance from a dump. You should NOT use this as part of normal
// operations.
//
// It returns the migrations that were recorded, in order.
func (m *Migrator) MarkApplied(ctx context.Context, db Executor, through string) ([]Migration, error) {
	if err := m.ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	plan, err := m.Plan(ctx, db)
	if err != nil {
		return nil, err
	}
	if through != "" {
		idx := slices.IndexFunc(plan, func(migration Migration) bool { return migration.Name == through })
		if idx == -1 {
			if slices.Contains(Names(m.Migrations), through) {
				m.warn(ctx, "skipping previously applied migration", LogField{Key: "migration_name", Value: through})
				return nil, nil
			}
			return nil, fmt.Errorf("unknown migration: %s", through)
		}
		plan = plan[:idx+1]
	}
	if len(plan) == 0 {
		return nil, nil
	}
	insert := fmt.Sprintf(
		`INSERT INTO %s (migration_name) VALUES (%s)`,
		m.dialect().table(m.TableName),
		m.dialect().placeholder(1),
	)
	if err := m.inTx(ctx, db, func(tx *sql.Tx) error {
		for _, migration := range plan {
			fields := []LogField{{Key: "migration_name", Value: migration.Name}}
			if _, err := tx.ExecContext(ctx, insert, migration.Name); err != nil {
				msg := "failed to mark migration as applied"
				m.error(ctx, err, msg, fields...)
				return fmt.Errorf("%s: %w", msg, err)
			}
			m.info(ctx, "marked migration as applied", fields...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return plan, nil
}

// MarkUnapplied (⚠️ danger) is a manual operation that removes the record of
// from, and of every migration recorded after it, from the migrations table.
// The schema is not changed. The remaining records are still a prefix of the
// migration names, so the removed migrations will be applied again by the next
// [Migrator.Migrate].
//
// This exists to repair the migrations table, for instance to drop records of
// migration files that were deleted. You should NOT use this as part of normal
// operations.
//
// It returns the records that were removed.
func (m *Migrator) MarkUnapplied(ctx context.Context, db Executor, from string) ([]AppliedMigration, error) {
	exists, err := m.dialect().tableExists(ctx, db, m.TableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("migrations table %s does not exist", m.TableName)
	}
	applied, err := m.Applied(ctx, db)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(applied, func(record AppliedMigration) bool { return record.Name == from })
	if idx == -1 {
		return nil, fmt.Errorf("no record of migration: %s", from)
	}
	removed := applied[idx:]
	query := fmt.Sprintf(
		`DELETE FROM %s WHERE migration_name = %s`,
		m.dialect().table(m.TableName),
		m.dialect().placeholder(1),
	)
	if err := m.inTx(ctx, db, func(tx *sql.Tx) error {
		for _, record := range removed {
			fields := []LogField{
				{Key: "migration_name", Value: record.Name},
				{Key: "migration_date", Value: record.AppliedAt},
			}
			if _, err := tx.ExecContext(ctx, query, record.Name); err != nil {
				msg := "failed to mark migration as unapplied"
				m.error(ctx, err, msg, fields...)
				return fmt.Errorf("%s: %w", msg, err)
			}
			m.info(ctx, "marked migration as unapplied", fields...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return removed, nil
}
