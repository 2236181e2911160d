package pgdrift

import "fmt"

// DivergenceError means that the migrations ledger is not a prefix of the
// migration files on disk: a file was deleted, renamed, or inserted out of
// order, or a migration was applied that no longer has a corresponding file.
//
// When File is empty, the ledger has a record at Index but there are no more
// files; this is only reported by a strict [Reconciler].
type DivergenceError struct {
	Index   int
	Applied string
	File    string
}

func (e *DivergenceError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("migration history diverged at position %d: %q is recorded as applied but has no migration file", e.Index, e.Applied)
	}
	return fmt.Sprintf("migration history diverged at position %d: %q is recorded as applied but the migration file is %q", e.Index, e.Applied, e.File)
}

// MigrationExecutionError is returned when a batch of pending migrations
// could not be applied. The whole batch has been rolled back. Name is the
// migration that failed, or empty if the failure happened while opening or
// committing the transaction.
type MigrationExecutionError struct {
	Name string
	Err  error
}

func (e *MigrationExecutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("failed to apply migrations: %s", e.Err)
	}
	return fmt.Sprintf("failed to apply migration %s: %s", e.Name, e.Err)
}

func (e *MigrationExecutionError) Unwrap() error {
	return e.Err
}
