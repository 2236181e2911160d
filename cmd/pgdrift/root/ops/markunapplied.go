package ops

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var MarkUnappliedFlags struct { //nolint:gochecknoglobals
	From *string
}

var markUnapplied = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "mark-unapplied [migration]",
	Aliases: []string{"remove", "rm", "delete"},
	Short:   "remove the records of a migration and every migration recorded after it",
	Long: shared.CLIHelp(`
Removes the record of the given migration, and of every migration recorded
after it, from the migrations table. The schema is not changed, and the next
"pgdrift migrate" runs the removed migrations again if their files exist.

Use this to clean up records of migration files that were deleted, which
"--strict" reports as an error.
	`),
	Example: shared.CLIExample(`
# Remove the records of 0003_posts.sql and everything after it
pgdrift ops mark-unapplied 0003_posts.sql
pgdrift ops mark-unapplied --from 0003_posts.sql
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 && *MarkUnappliedFlags.From == "" {
			*MarkUnappliedFlags.From = args[0]
		}
		if *MarkUnappliedFlags.From == "" {
			return fmt.Errorf("must pass the first migration to remove, as an argument or with --from")
		}
		shared.State.Parse()
		database := shared.State.Database()
		if err := shared.Validate(database); err != nil {
			return err
		}
		db, dialect, err := shared.OpenDB()
		if err != nil {
			return err
		}
		defer db.Close()
		slogger, mlogger := shared.State.Logger()

		migrator := pgdrift.NewMigrator(nil)
		migrator.Logger = mlogger
		migrator.Dialect = dialect
		migrator.TableName = shared.State.TableName().Value()
		removed, err := migrator.MarkUnapplied(ctx, db, *MarkUnappliedFlags.From)
		if err != nil {
			return err
		}
		slogger.Info("marked migrations as unapplied", "count", len(removed))
		return nil
	},
}

func init() { //nolint:gochecknoinits
	MarkUnappliedFlags.From = markUnapplied.Flags().String("from", "", "the first migration record to remove")
}
