package pgdrift

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestSortByName(t *testing.T) {
	t.Parallel()

	t.Run("simple example", testcase( //nolint:paralleltest // it is parallel
		[]string{
			"0002_followup.sql",
			"0001_initial.sql",
		},
		[]string{
			"0001_initial.sql",
			"0002_followup.sql",
		},
	))
	t.Run("lexicographical ordering", testcase( //nolint:paralleltest // it is parallel
		[]string{
			"1_one.sql",
			"0001_one.sql",
			"01_one.sql",
			"001_one.sql",
		},
		[]string{
			"0001_one.sql",
			"001_one.sql",
			"01_one.sql",
			"1_one.sql",
		},
	))
	t.Run("more complicated", testcase( //nolint:paralleltest // it is parallel
		[]string{
			"0001_initial.sql",
			"002_garbage.sql",
			"03_something.sql",
			"0002_followup.sql",
			"0003_whatever.sql",
		},
		[]string{
			"0001_initial.sql",
			"0002_followup.sql",
			"0003_whatever.sql",
			"002_garbage.sql",
			"03_something.sql",
		},
	))
}

// testcase builds a test case for SortByName:
//   - initial contains the names of some migrations in their original order.
//   - expected contains the names of the same migrations in their expected sorted order.
func testcase(initial, expected []string) func(*testing.T) {
	return func(t *testing.T) {
		t.Parallel()
		migrations := make([]Migration, 0, len(initial))
		for _, name := range initial {
			migrations = append(migrations, Migration{Name: name, SQL: "-- not implemented"})
		}
		SortByName(migrations)
		check.Equal(t, expected, Names(migrations))
	}
}
