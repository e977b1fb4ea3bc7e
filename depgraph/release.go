package depgraph

// ReleaseAccessRegion implements spec §4.9: find every access of task
// intersecting region, fragment each to region, and finalize it (and its
// fragments), recording location when it is valid and weak is false. This is the explicit
// release-point entry: a worker thread calls it mid-task-body to let
// successors start early instead of waiting for full task completion.
func (e *Engine) ReleaseAccessRegion(task *Task, region Region, weak bool, location MemoryPlace, out *CPUDependencyData) {
	guard := task.Data.Lock()
	defer guard.Unlock()

	task.Data.Accesses.ProcessIntersecting(region, func(a *Access) *Access {
		e.finalizeAccess(task, a, weak, location, out)
		return a
	})
	task.Data.Fragments.ProcessIntersecting(region, func(a *Access) *Access {
		e.finalizeAccess(task, a, weak, location, out)
		return a
	})
}

// finalizeAccess marks a Complete and records its release location (spec
// §4.9's finalize_access), then reacts to whatever that flips. A location
// of NoPlace leaves a's current location untouched — used by
// finalizeAllAccesses, where the access was already locally satisfied at
// link time and unregistration only needs to flip Complete.
func (e *Engine) finalizeAccess(task *Task, a *Access, weak bool, location MemoryPlace, out *CPUDependencyData) {
	before := Compute(a)
	a.Status = a.Status.Set(Complete)
	if !weak {
		if location.Valid() {
			a.Location = location
		}
		a.Status = a.Status.Set(ReadSatisfied | WriteSatisfied)
	}
	after := Compute(a)
	e.handleStatusChanges(before.Diff(after), a, task, out)
}

// finalizeAllAccesses marks every access and fragment of task Complete,
// the second half of spec §2's completion control flow: "unregister_task_
// data_accesses -> create top-level sink -> finalize accesses -> drain".
// It must run after CreateTopLevelSink so that finalization propagates
// through the sink rather than stopping at a dangling leaf.
func (e *Engine) finalizeAllAccesses(task *Task, out *CPUDependencyData) {
	guard := task.Data.Lock()
	defer guard.Unlock()

	var all []*Access
	task.Data.Accesses.ForEach(func(a *Access) bool {
		all = append(all, a)
		return true
	})
	task.Data.Fragments.ForEach(func(a *Access) bool {
		all = append(all, a)
		return true
	})
	for _, a := range all {
		e.finalizeAccess(task, a, false, NoPlace, out)
	}
}

// ReleaseTaskwaitFragment marks the taskwait fragments of task intersecting
// region Complete, used when a remote data transfer backing a taskwait
// finishes (spec §4.9).
func (e *Engine) ReleaseTaskwaitFragment(task *Task, region Region, out *CPUDependencyData) {
	guard := task.Data.Lock()
	defer guard.Unlock()

	task.Data.TaskwaitFragments.ProcessIntersecting(region, func(a *Access) *Access {
		before := Compute(a)
		a.Status = a.Status.Set(Complete | ReadSatisfied | WriteSatisfied)
		after := Compute(a)
		e.handleStatusChanges(before.Diff(after), a, task, out)
		return a
	})
}

// PropagateSatisfiability implements spec §4.10: a cross-node message
// delivers read/write satisfiability (and, possibly, a location) for a
// region of task's accesses. location.Valid()==false is the wire encoding
// of "no location yet" (spec §6's LocationIndex == -1), supporting
// write-before-read delivery order (scenario S6).
func (e *Engine) PropagateSatisfiability(task *Task, region Region, read, write bool, location MemoryPlace, out *CPUDependencyData) {
	op := UpdateOperation{
		Target:             region,
		TargetLink:         AccessLink{Task: task.Handle.ID(), Kind: ObjAccess},
		MakeReadSatisfied:  read,
		MakeWriteSatisfied: write,
		HasLocation:        location.Valid(),
		Location:           location,
	}
	e.processUpdateOperation(op, out)
}
