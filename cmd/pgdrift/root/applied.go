package root

import (
	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var appliedCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "applied",
	Aliases: []string{"list"},
	Short:   "Show all previously-applied migrations",
	Long: shared.CLIHelp(`
Prints the records in the migrations table, ordered by migration name.

If there are no applied migrations, or the table does not exist, this command
prints nothing and exits successfully.
	`),
	GroupID:          "migrating",
	TraverseChildren: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shared.State.Parse()
		database := shared.State.Database()
		if err := shared.Validate(database); err != nil {
			return err
		}

		slogger, mlogger := shared.State.Logger()
		db, dialect, err := shared.OpenDB()
		if err != nil {
			return err
		}
		defer db.Close()

		migrator := pgdrift.NewMigrator(nil)
		migrator.Logger = mlogger
		migrator.Dialect = dialect
		migrator.TableName = shared.State.TableName().Value()
		applied, err := migrator.Applied(cmd.Context(), db)
		if err != nil {
			return err
		}
		for _, m := range applied {
			slogger.With("applied_at", m.AppliedAt).Info(m.Name)
		}
		return nil
	},
}
