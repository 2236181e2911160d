package root

import (
	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "migrate",
	Aliases: []string{"apply"},
	Short:   "Apply any previously-unapplied migrations",
	Long: shared.CLIHelp(`
Applies any previously un-applied migrations. It records each applied
migration in the migrations table, with the following schema:

  - migration_name: text primary key
  - migration_date: timestamp not null, defaults to the time of insertion

First, it reads the names recorded in the migrations table and compares them,
in order, against the *.sql files in the migrations directory. The recorded
names must be a prefix of the file names. If a recorded name doesn't match the
file at the same position (because a file was renamed, deleted, or added out
of order), the command fails without applying anything.

Recorded names beyond the last file are logged as a warning, or treated as an
error when "--strict" is set.

Second, every migration after the recorded prefix is applied in a single
transaction, in ascending name order, each followed by a record in the
migrations table. If any migration fails, the transaction rolls back and the
database is left exactly as it was: no schema changes and no new records.

Running "migrate" again when nothing is pending does nothing.

With "--lock", a postgres advisory lock is held while migrating so that
parallel invocations wait for each other.
	`),
	Example: shared.CLIExample(`
# Apply pending migrations
pgdrift migrate -d postgres://localhost:5432/app -m ./migrations
# Refuse to run if the migrations table knows about deleted files
pgdrift migrate --strict
	`),
	GroupID:          "migrating",
	TraverseChildren: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shared.State.Parse()
		database := shared.State.Database()
		migrations := shared.State.Migrations()
		if err := shared.Validate(database, migrations); err != nil {
			return err
		}

		slogger, mlogger := shared.State.Logger()
		db, dialect, err := shared.OpenDB()
		if err != nil {
			return err
		}
		defer db.Close()

		migrator, err := shared.Migrator(mlogger, dialect)
		if err != nil {
			return err
		}
		migrator.Lock = shared.State.Lock().Value()
		applied, err := migrator.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		for _, m := range applied {
			slogger.Info("applied", "migration", m.Name)
		}
		slogger.Info("done", "count", len(applied))
		return nil
	},
}

func init() { //nolint:gochecknoinits
	shared.State.Flags.Lock = migrateCmd.Flags().Bool(
		"lock",
		false,
		"[PGDRIFT_LOCK] hold a postgres advisory lock while migrating",
	)
}
