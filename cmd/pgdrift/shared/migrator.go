package shared

import (
	"os"

	"github.com/peterldowns/pgdrift"
)

// Migrator loads the configured migrations directory and returns a
// [pgdrift.Migrator] using the configured table name and strictness.
func Migrator(logger pgdrift.Logger, dialect pgdrift.Dialect) (*pgdrift.Migrator, error) {
	dir := State.Migrations()
	if err := Validate(dir); err != nil {
		return nil, err
	}
	migrations, err := pgdrift.Load(os.DirFS(dir.Value()))
	if err != nil {
		return nil, err
	}
	m := pgdrift.NewMigrator(migrations)
	m.Logger = logger
	m.TableName = State.TableName().Value()
	m.Strict = State.Strict().Value()
	if dialect != nil {
		m.Dialect = dialect
	}
	return m, nil
}
