package depgraph

import "github.com/cockroachdb/errors"

// DeclarationConflictError is the user-attributable declaration conflict
// error. RegisterTaskDataAccess returns it for two cases: a reduction
// overlapping a non-reduction access of the same task, and overlapping
// reductions with a mismatched type/operator. Releasing a dependency with a
// type other than its declared type, and a nested reduction inside a
// concurrent/commutative parent, are not detected by this package.
// Callers can match on it with errors.As.
type DeclarationConflictError struct {
	Task   TaskId
	Symbol int32
	Reason string
}

func (e *DeclarationConflictError) Error() string {
	return "depgraph: declaration conflict in task " + e.Task.String() + ": " + e.Reason
}

func newConflict(task TaskId, symbol int32, reason string) error {
	return errors.WithStack(&DeclarationConflictError{Task: task, Symbol: symbol, Reason: reason})
}

// assertf panics via errors.AssertionFailedf, matching the teacher's
// "internal invariant violation" handling (spec §7): these conditions must
// never occur in a release build and are not meant to be recovered from.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}
