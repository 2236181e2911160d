package ops

import (
	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var MarkAppliedFlags struct { //nolint:gochecknoglobals
	Through *string
}

var markApplied = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "mark-applied [migration]",
	Aliases: []string{"create"},
	Short:   "mark pending migrations as having been applied without running them",
	Long: shared.CLIHelp(`
Records pending migrations in the migrations table without running them, up to
and including the given migration. Every earlier pending migration is recorded
too, so the table still matches the start of the migrations directory.

Use this to start managing a database whose schema already exists.
	`),
	Example: shared.CLIExample(`
# Record 0001_initial.sql and 0002_users.sql as applied without running them
pgdrift ops mark-applied 0002_users.sql
pgdrift ops mark-applied --through 0002_users.sql

# Record every pending migration as applied
pgdrift ops mark-applied
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 && *MarkAppliedFlags.Through == "" {
			*MarkAppliedFlags.Through = args[0]
		}
		shared.State.Parse()
		migrationsDir := shared.State.Migrations()
		database := shared.State.Database()
		if err := shared.Validate(database, migrationsDir); err != nil {
			return err
		}
		db, dialect, err := shared.OpenDB()
		if err != nil {
			return err
		}
		defer db.Close()
		slogger, mlogger := shared.State.Logger()

		migrator, err := shared.Migrator(mlogger, dialect)
		if err != nil {
			return err
		}
		if *MarkAppliedFlags.Through == "" {
			slogger.Info("marking ALL pending migrations as applied")
		}
		marked, err := migrator.MarkApplied(ctx, db, *MarkAppliedFlags.Through)
		if err != nil {
			return err
		}
		slogger.Info("marked migrations as applied", "count", len(marked))
		return nil
	},
}

func init() { //nolint:gochecknoinits
	MarkAppliedFlags.Through = markApplied.Flags().String("through", "", "the last migration to mark as applied (default: all pending)")
}
