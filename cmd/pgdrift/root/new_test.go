package root

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestMigrationFilename(t *testing.T) {
	t.Parallel()
	now := time.Date(2023, 1, 2, 3, 4, 5, 0, time.FixedZone("UTC+2", 2*60*60))
	check.Equal(t, "20230102010405_create_users.sql", migrationFilename(now, "create_users"))
	check.Equal(t, "20230102010405_add_users_index.sql", migrationFilename(now, "  add users   index "))
	check.Equal(t, "20230102010405_init.sql", migrationFilename(now, "init.sql"))
	check.Equal(t, "20230102010405_generated.sql", migrationFilename(now, ""))
}

func TestCreateMigration(t *testing.T) {
	t.Parallel()
	fp := filepath.Join(t.TempDir(), "migrations", "20230101120000_init.sql")
	assert.Nil(t, createMigration(fp))

	contents, err := os.ReadFile(fp)
	assert.Nil(t, err)
	check.Equal(t, "-- write your migration here\n", string(contents))

	// existing files are never overwritten
	assert.Nil(t, os.WriteFile(fp, []byte("CREATE TABLE users ();"), 0o644))
	check.Error(t, createMigration(fp))
	contents, err = os.ReadFile(fp)
	assert.Nil(t, err)
	check.Equal(t, "CREATE TABLE users ();", string(contents))
}
