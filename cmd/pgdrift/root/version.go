package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

var versionCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "version",
	GroupID: "ops",
	Short:   "show the version of this binary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), shared.VersionString())
		return err
	},
}
