package pgdrift

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestLoggingSucceedsWithNilLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	migrator := NewMigrator(nil)

	migrator.log(ctx, LogLevelInfo, "hello", LogField{Key: "location", Value: "world"})
	migrator.log(ctx, LogLevelDebug, "hello", LogField{Key: "location", Value: "world"})
	migrator.log(ctx, LogLevelError, "hello", LogField{Key: "location", Value: "world"})

	migrator.debug(ctx, "hello", LogField{Key: "location", Value: "world"})
	migrator.info(ctx, "hello", LogField{Key: "location", Value: "world"})
	migrator.warn(ctx, "hello", LogField{Key: "location", Value: "world"})
	migrator.error(ctx, fmt.Errorf("new error"), "hello", LogField{Key: "location", Value: "world"})
}

func TestTimestampScan(t *testing.T) {
	t.Parallel()
	want := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	var fromText timestamp
	check.Nil(t, fromText.Scan("2023-01-02 03:04:05"))
	check.True(t, time.Time(fromText).Equal(want))

	var fromBytes timestamp
	check.Nil(t, fromBytes.Scan([]byte("2023-01-02T03:04:05Z")))
	check.True(t, time.Time(fromBytes).Equal(want))

	var fromTime timestamp
	check.Nil(t, fromTime.Scan(want))
	check.True(t, time.Time(fromTime).Equal(want))

	var bad timestamp
	check.Error(t, bad.Scan("yesterday"))
	check.Error(t, bad.Scan(42))
}

func TestCheckNames(t *testing.T) {
	t.Parallel()
	warnings, err := checkNames([]Migration{
		{Name: "0001_initial.sql"},
		{Name: "users.sql"},
	})
	check.Nil(t, err)
	check.Equal(t, []string{"users.sql"}, warnings)

	_, err = checkNames([]Migration{
		{Name: "0001_initial.sql"},
		{Name: "0001_initial.sql"},
	})
	check.Error(t, err)
}

func TestDialectTables(t *testing.T) {
	t.Parallel()
	check.Equal(t, `"public"."pgdrift_migrations"`, Postgres.table(DefaultTableName))
	check.Equal(t, `"pgdrift_migrations"`, SQLite.table(DefaultTableName))
	check.Equal(t, `"Ledger"`, Postgres.table(".Ledger"))
	check.Equal(t, `CREATE SCHEMA IF NOT EXISTS "public"`, Postgres.createSchema(DefaultTableName))
	check.Equal(t, "", Postgres.createSchema(".ledger"))
	check.Equal(t, "", SQLite.createSchema(DefaultTableName))
	check.Equal(t, "$2", Postgres.placeholder(2))
	check.Equal(t, "?", SQLite.placeholder(2))
}
