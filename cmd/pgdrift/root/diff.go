package root

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
	"github.com/peterldowns/pgdrift/shadow"
)

var diffCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "diff [baseline]",
	Short: "Compare the schema built by the migrations against the database",
	Long: shared.CLIHelp(`
Creates a disposable "shadow" postgres database, applies every migration to
it, and compares its schema against the target database with migra. The SQL
that would bring the target in line with the migrations is printed to stdout;
nothing is printed when the schemas match. Logs go to stderr.

If a baseline file is given, its contents are executed against the shadow
database before the migrations, for instance a schema dump taken before the
first migration file existed.

The shadow database is always destroyed, even if a step fails. If destroying it
fails, a warning is logged with a command to remove it by hand.

The shadow database and the diff tool are configured in the config file:

    shadow:
      # "docker" (default) or "embedded", which downloads and runs a postgres
      # server without docker
      provisioner: docker
      image: postgres:16-alpine
      # the shadow database listens on 127.0.0.1:<port>
      port: 54320
      # how often and how many times to check that the shadow database is up
      poll_interval: 1s
      poll_attempts: 20
      # the schema to compare
      schema: public
    diff:
      # "exec" (default) runs the migra binary at "path", "docker" runs
      # it from "image"
      tool: exec
      path: migra
      image: djrobstep/migra
	`),
	Example: shared.CLIExample(`
# Print the changes needed to bring the target up to date with the migrations
pgdrift diff -d postgres://localhost:5432/app -m ./migrations > drift.sql
# Seed the shadow database from a schema dump first
pgdrift diff ./schema.sql
	`),
	GroupID:          "ops",
	TraverseChildren: true,
	Args:             cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (final error) {
		shared.State.Parse()
		database := shared.State.Database()
		migrations := shared.State.Migrations()
		if err := shared.Validate(database, migrations); err != nil {
			return err
		}
		dialect, err := shared.Dialect()
		if err != nil {
			return err
		}
		if dialect != pgdrift.Postgres {
			return errors.New("diff requires a postgres database")
		}
		baseline := ""
		if len(args) == 1 {
			baseline = args[0]
		}

		slogger, mlogger := shared.State.Logger()
		migrator, err := shared.Migrator(mlogger, nil)
		if err != nil {
			return err
		}

		provisioner, pcloser, err := shared.Provisioner(mlogger)
		if err != nil {
			return err
		}
		defer func() {
			if err := pcloser.Close(); err != nil {
				final = multierror.Append(final, err).ErrorOrNil()
			}
		}()
		differ, dcloser, err := shared.Differ(mlogger)
		if err != nil {
			return err
		}
		defer func() {
			if err := dcloser.Close(); err != nil {
				final = multierror.Append(final, err).ErrorOrNil()
			}
		}()

		orchestrator := shadow.Orchestrator{
			Provisioner: provisioner,
			Differ:      differ,
			Config:      shared.ShadowSettings(baseline),
			Logger:      mlogger,
			Observer: func(from, to shadow.State) {
				slogger.Debug("state", "from", from.String(), "to", to.String())
			},
		}
		result, err := orchestrator.Run(cmd.Context(), database.Value(), migrator.Migrations)
		if err != nil {
			return err
		}
		if result.Diff == "" {
			slogger.Info("no differences")
			return nil
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), result.Diff)
		return err
	},
}
