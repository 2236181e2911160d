package pgdrift

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Migration represents a single SQL migration file.
type Migration struct {
	Name string // the filename of the migration, including the .sql extension
	SQL  string // the contents of the migration file
}

// AppliedMigration is one record in the migrations ledger table.
type AppliedMigration struct {
	Name      string    // the name of the migration that was applied
	AppliedAt time.Time // when the migration was recorded as applied, in UTC
}

// SortByName sorts a slice of [Migration] in ascending lexicographical order by
// name. This is the same order that you see if you use `ls` or `sort`, and the
// order in which migrations are applied.
func SortByName(migrations []Migration) {
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// Names returns the name of each migration, in the same order.
func Names(migrations []Migration) []string {
	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.Name)
	}
	return names
}

// checkNames rejects duplicate migration names and returns a warning for each
// name that does not start with a numeric prefix, since those names are
// unlikely to sort where their author expects.
func checkNames(migrations []Migration) ([]string, error) {
	seen := make(map[string]struct{}, len(migrations))
	var warnings []string
	for _, m := range migrations {
		if _, ok := seen[m.Name]; ok {
			return nil, fmt.Errorf("duplicate migration name %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.Name == "" || !unicode.IsDigit(rune(m.Name[0])) {
			warnings = append(warnings, m.Name)
		}
	}
	return warnings, nil
}
