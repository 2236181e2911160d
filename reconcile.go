package pgdrift

// Reconciler compares the names recorded in the migrations ledger against the
// names of the migration files on disk.
type Reconciler struct {
	// Strict makes a ledger with more records than there are files an error.
	// By default the extra records are ignored.
	Strict bool
}

// Reconcile is shorthand for a non-strict [Reconciler.Reconcile].
func Reconcile(applied, files []string) (int, error) {
	return Reconciler{}.Reconcile(applied, files)
}

// Reconcile walks applied and files position by position and returns the index
// of the first file that has not been applied. Both lists must be sorted in
// ascending order. Any position where the names differ is a
// [*DivergenceError].
//
// A result >= len(files) means there is nothing to apply.
func (r Reconciler) Reconcile(applied, files []string) (int, error) {
	i := 0
	for ; i < len(applied) && i < len(files); i++ {
		if applied[i] != files[i] {
			return 0, &DivergenceError{Index: i, Applied: applied[i], File: files[i]}
		}
	}
	if r.Strict && i < len(applied) {
		return 0, &DivergenceError{Index: i, Applied: applied[i]}
	}
	return i, nil
}
