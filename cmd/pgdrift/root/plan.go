package root

import (
	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "plan",
	Short: "Preview which migrations would be applied",
	Long: shared.CLIHelp(`
Prints the migrations that "pgdrift migrate" would apply, in the order it would
apply them, without changing the database.

Fails in the same cases as "migrate" when the migrations table does not match
the migration files.
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
		plan, err := migrator.Plan(cmd.Context(), db)
		if err != nil {
			return err
		}
		for _, m := range plan {
			slogger.Info(m.Name)
		}
		return nil
	},
}
