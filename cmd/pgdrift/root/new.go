package root

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/peterldowns/pgdrift/cmd/pgdrift/shared"
)

// timestampLayout prefixes generated migration names so that they sort in
// creation order.
const timestampLayout = "20060102150405"

var NewFlags struct { //nolint:gochecknoglobals
	Name   *string
	Bare   *bool
	Create *bool
}

var newCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "new [name]",
	Aliases: []string{"make"},
	Short:   "create a new, empty, timestamped migration file",
	Long: shared.CLIHelp(`
Creates an empty migration file in the migrations directory. The file name is
the current UTC time followed by the name you give it, for instance

  20230101120000_create_users.sql

so that files sort in the order they were created, which is the order that
"pgdrift migrate" applies them in.

Spaces in the name are replaced with underscores. If no name is given the
file is called "generated". An existing file is never overwritten.
	`),
	Example: shared.CLIExample(`
# Create ./migrations/<timestamp>_create_users.sql
pgdrift new create_users -m ./migrations
pgdrift make --name create_users
# Only print the file name, don't create it
pgdrift new create_users --create=false
# Create a new migration file and open it in an editor
pgdrift new add_index --bare | xargs vim
	`),
	GroupID:          "dev",
	TraverseChildren: true,
	Args:             cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if len(args) == 1 && *NewFlags.Name == "" {
			*NewFlags.Name = args[0]
		}
		shared.State.Parse()
		migrationsDir := shared.State.Migrations()
		if err := shared.Validate(migrationsDir); err != nil {
			return err
		}
		slogger, _ := shared.State.Logger()

		filename := migrationFilename(time.Now(), *NewFlags.Name)
		fp := filepath.Join(migrationsDir.Value(), filename)
		if *NewFlags.Create {
			if err := createMigration(fp); err != nil {
				return err
			}
		}
		if *NewFlags.Bare {
			fmt.Println(fp)
		} else {
			slogger.Info("created", "name", filename, "path", fp)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits
	NewFlags.Bare = newCmd.Flags().BoolP("bare", "b", false, "if true, only print the created migration file path")
	NewFlags.Create = newCmd.Flags().BoolP("create", "c", true, "if true, create the migration file")
	NewFlags.Name = newCmd.Flags().StringP("name", "n", "", "the name of the new migration (default 'generated')")
}

func migrationFilename(now time.Time, name string) string {
	name = strings.Join(strings.Fields(name), "_")
	name = strings.TrimSuffix(name, ".sql")
	if name == "" {
		name = "generated"
	}
	return fmt.Sprintf("%s_%s.sql", now.UTC().Format(timestampLayout), name)
}

func createMigration(fp string) error {
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("migration already exists: %s", fp)
		}
		return err
	}
	if _, err := file.WriteString("-- write your migration here\n"); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
