package shared

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestNewVariablePrecedence(t *testing.T) {
	t.Parallel()
	v := NewVariable("database", "", "from-env", "from-config", "default")
	check.Equal(t, "database", v.Name())
	check.Equal(t, "from-env", v.Value())
	check.True(t, v.IsSet())

	v = NewVariable("database", "from-flag", "from-env", "from-config")
	check.Equal(t, "from-flag", v.Value())

	unset := NewVariable("database", "", "", "")
	check.Equal(t, false, unset.IsSet())
	check.Equal(t, "", unset.Value())
}

func TestValidate(t *testing.T) {
	t.Parallel()
	set := NewVariable("database", "postgres://localhost")
	check.Nil(t, Validate(set))

	missing := NewVariable("database", "")
	err := Validate(set, missing)
	if check.Error(t, err) {
		check.Equal(t, `required flag "database" not set`, err.Error())
	}

	err = Validate(missing, NewVariable("migrations", ""))
	if check.Error(t, err) {
		check.Equal(t, `required flags "database", "migrations" not set`, err.Error())
	}
}

func TestEnvParsers(t *testing.T) {
	t.Setenv("PGDRIFT_TEST_INT", "42")
	t.Setenv("PGDRIFT_TEST_BOOL", "true")
	t.Setenv("PGDRIFT_TEST_DURATION", "250ms")
	t.Setenv("PGDRIFT_TEST_BAD", "nope")

	check.Equal(t, 42, envInt("PGDRIFT_TEST_INT"))
	check.Equal(t, true, envBool("PGDRIFT_TEST_BOOL"))
	check.Equal(t, 250*time.Millisecond, envDuration("PGDRIFT_TEST_DURATION"))

	check.Equal(t, 0, envInt("PGDRIFT_TEST_BAD"))
	check.Equal(t, false, envBool("PGDRIFT_TEST_BAD"))
	check.Equal(t, time.Duration(0), envDuration("PGDRIFT_TEST_BAD"))
	check.Equal(t, 0, envInt("PGDRIFT_TEST_MISSING"))
}

func TestCLIHelp(t *testing.T) {
	t.Parallel()
	help := CLIHelp(`
		Apply pending migrations.

		Runs in one transaction.
	`)
	check.Equal(t, "Apply pending migrations.\n\nRuns in one transaction.", help)

	example := CLIExample(`
		pgdrift migrate
		pgdrift migrate --strict
	`)
	check.Equal(t, "  pgdrift migrate\n  pgdrift migrate --strict", example)
}
