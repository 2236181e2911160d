package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/cmd/pgdrift/root/ops"
	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var Command = &cobra.Command{ //nolint:gochecknoglobals
	Version: shared.VersionString(),
	Use:     "pgdrift",
	Short:   "migrate postgres databases and detect schema drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf(`invalid command: "%s"`, args[0])
		}
		return cmd.Help()
	},
}

func init() { //nolint:gochecknoinits
	Command.CompletionOptions.HiddenDefaultCmd = true
	Command.TraverseChildren = true
	Command.SilenceErrors = true
	Command.SilenceUsage = true
	Command.SetVersionTemplate("{{.Version}}\n")

	shared.State.Flags.LogFormat = Command.PersistentFlags().StringP(
		"log-format",
		"l",
		"",
		fmt.Sprintf("[PGDRIFT_LOG_FORMAT] '%s' or '%s', the log line format (default '%s')", shared.LogFormatText, shared.LogFormatJSON, shared.LogFormatText),
	)
	shared.State.Flags.Database = Command.PersistentFlags().StringP(
		"database",
		"d",
		"",
		"[PGDRIFT_DATABASE] a 'postgres://...' or 'sqlite://...' connection string",
	)
	shared.State.Flags.Driver = Command.PersistentFlags().String(
		"driver",
		"",
		fmt.Sprintf("[PGDRIFT_DRIVER] '%s' or '%s', the driver for postgres connections (default '%s')", shared.DriverPgx, shared.DriverPq, shared.DriverPgx),
	)
	shared.State.Flags.Migrations = Command.PersistentFlags().StringP(
		"migrations",
		"m",
		"",
		"[PGDRIFT_MIGRATIONS] a path to a directory containing *.sql migrations",
	)
	shared.State.Flags.TableName = Command.PersistentFlags().StringP(
		"table-name",
		"t",
		"",
		fmt.Sprintf("[PGDRIFT_TABLENAME] the table that records applied migrations (default '%s')", pgdrift.DefaultTableName),
	)
	shared.State.Flags.ConfigFile = Command.PersistentFlags().StringP(
		"configfile",
		"f",
		"",
		"[PGDRIFT_CONFIGFILE] a path to a configuration file",
	)
	shared.State.Flags.Strict = Command.PersistentFlags().Bool(
		"strict",
		false,
		"[PGDRIFT_STRICT] fail when the migrations table records a migration that has no file",
	)
	_ = Command.MarkPersistentFlagDirname("migrations")

	Command.AddGroup(
		&cobra.Group{
			ID:    "migrating",
			Title: "Migrating:",
		},
		&cobra.Group{
			ID:    "ops",
			Title: "Operations:",
		},
		&cobra.Group{
			ID:    "dev",
			Title: "Development:",
		},
	)

	// migrating
	Command.AddCommand(appliedCmd)
	Command.AddCommand(planCmd)
	Command.AddCommand(migrateCmd)

	// ops
	Command.AddCommand(diffCmd)
	Command.AddCommand(ops.Command)
	Command.AddCommand(versionCmd)

	// dev
	Command.AddCommand(newCmd)
	Command.AddCommand(configCmd)
	Command.SetHelpCommandGroupID("dev")
}
