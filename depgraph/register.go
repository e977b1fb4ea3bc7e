package depgraph

import "fmt"

// isRemote reports whether task should be treated as cluster-offloaded for
// the purposes of missing-region read/write satisfiability and location
// assignment. Config.DisableClusterOffload forces every task local
// regardless of what the TaskHandle itself reports, matching the original's
// behavior when cluster support is compiled out (SPEC_FULL.md §4, item 3).
func (e *Engine) isRemote(task *Task) bool {
	return !e.cfg.DisableClusterOffload && task.Handle.IsRemote()
}

// RegisterTaskDataAccess implements spec §4.5 step 1-3: fragment the
// task's own accesses index against r, upgrade any existing access that
// now intersects r, and insert a fresh access over whatever is left
// uncovered. It must be called once per declared access, before
// LinkTaskAccesses makes any of them reachable; callers typically call it
// N times (once per clause) from inside TaskHandle's register-dependencies
// callback (spec §6).
func (e *Engine) RegisterTaskDataAccess(
	task *Task,
	kind AccessKind,
	weak bool,
	r Region,
	symbolIndex int32,
	reductionTypeOp ReductionTypeOp,
) error {
	var conflict error

	task.Data.Accesses.ProcessIntersectingAndMissing(r,
		func(existing *Access) *Access {
			if conflict == nil {
				if err := upgradeAccess(existing, kind, weak, reductionTypeOp); err != nil {
					conflict = newConflict(task.Handle.ID(), symbolIndex, err.Error())
				}
			}
			return existing
		},
		func(hole Region) {
			task.Data.Accesses.Insert(NewAccess(kind, ObjAccess, weak, hole, task.Handle.ID(), symbolIndex))
		},
	)

	if conflict != nil {
		e.subs.register.Error("declaration conflict", "task", task.Handle.ID(), "symbol", symbolIndex, "err", conflict)
	}
	return conflict
}

// upgradeAccess merges kind/weak into existing per spec §4.5's rules:
//   - new.weak = old.weak ∧ new.weak
//   - Reduction mixed with a non-Reduction kind is a declaration conflict
//   - Concurrent × Commutative → Commutative
//   - any other kind mismatch → ReadWrite
//   - two Reductions require a matching (type, op, index), else conflict
func upgradeAccess(existing *Access, kind AccessKind, weak bool, redTypeOp ReductionTypeOp) error {
	existing.Weak = existing.Weak && weak

	if existing.Kind == kind {
		if kind == Reduction && existing.ReductionTypeOp != redTypeOp {
			return fmt.Errorf("overlapping reductions with mismatched type/operator on region %s", existing.Region())
		}
		return nil
	}

	if existing.Kind == Reduction || kind == Reduction {
		return fmt.Errorf("overlapping %s access conflicts with a reduction on region %s", kind, existing.Region())
	}

	if (existing.Kind == Concurrent && kind == Commutative) || (existing.Kind == Commutative && kind == Concurrent) {
		existing.Kind = Commutative
		return nil
	}

	existing.Kind = ReadWrite
	return nil
}
