package depgraph

// CreateTaskwait implements spec §4.6: for every bottom-map entry of task,
// synthesize a Taskwait-kind access over that region, wire it as the
// current predecessor's successor, and raise the task's blocking count
// once. If place is a valid compute place the taskwait gets an
// OutputLocation and waits for both satisfiability bits before firing its
// workflow; otherwise it is marked Complete immediately (spec's "otherwise
// mark it complete immediately").
func (e *Engine) CreateTaskwait(task *Task, place MemoryPlace, out *CPUDependencyData) {
	guard := task.Data.Lock()
	defer guard.Unlock()

	var entries []*BottomMapEntry
	task.Data.BottomMap.ForEach(func(be *BottomMapEntry) bool {
		entries = append(entries, be)
		return true
	})
	if len(entries) == 0 {
		return
	}

	task.Handle.IncreaseBlockingCount()

	for _, be := range entries {
		tw := NewAccess(None, ObjTaskwait, false, be.Region(), task.Handle.ID(), -1)
		if place.Valid() {
			tw.OutputLocation = place
			tw.Status = tw.Status.Set(HasOutputLocation)
		} else {
			tw.Status = tw.Status.Set(Complete)
		}

		before := Compute(tw)
		tw.Status = tw.Status.Set(Registered | InBottomMap)
		after := Compute(tw)
		e.handleStatusChanges(before.Diff(after), tw, task, out)

		task.Data.TaskwaitFragments.Insert(tw)

		e.wirePredecessorLink(task.Handle.ID(), be.Link, tw, out)
		be.Link = AccessLink{Task: task.Handle.ID(), Kind: ObjTaskwait}
	}
}

// CreateTopLevelSink implements spec §4.6: identical structure to
// CreateTaskwait but scoped to NONE-kind (purely local) bottom-map entries
// only, object kind TopLevelSink, and always created Complete. Reductions
// reaching a top-level sink are always closed, since nothing downstream of
// unregistration will ever combine them further.
func (e *Engine) CreateTopLevelSink(task *Task, out *CPUDependencyData) {
	guard := task.Data.Lock()
	defer guard.Unlock()

	var entries []*BottomMapEntry
	task.Data.BottomMap.ForEach(func(be *BottomMapEntry) bool {
		if be.AccessTypeOfParentChain == None {
			entries = append(entries, be)
		}
		return true
	})
	if len(entries) == 0 {
		return
	}

	for _, be := range entries {
		sink := NewAccess(None, ObjTopLevelSink, false, be.Region(), task.Handle.ID(), -1)
		sink.Status = sink.Status.Set(Complete)
		if be.ReductionTypeOp != (ReductionTypeOp{}) {
			sink.Status = sink.Status.Set(ClosesReduction)
		}

		before := Compute(sink)
		sink.Status = sink.Status.Set(Registered | InBottomMap)
		after := Compute(sink)
		e.handleStatusChanges(before.Diff(after), sink, task, out)

		task.Data.TaskwaitFragments.Insert(sink)

		e.wirePredecessorLink(task.Handle.ID(), be.Link, sink, out)
		be.Link = AccessLink{Task: task.Handle.ID(), Kind: ObjTopLevelSink}
	}
}

// removeBottomMapTaskwaitOrTopLevelSink tears down a fully-discounted
// taskwait or top-level-sink access: it is erased from the taskwait
// fragments index and its bottom-map entry is dropped, since nothing
// downstream will ever look it up again (spec §4.6, §9's note on
// has_data_release_step ownership transfer back to the original access —
// implemented here by moving any still-pending release step back onto the
// access that held the region before the synthetic object existed, via
// the access's own stepHandle rather than a second free).
func (e *Engine) removeBottomMapTaskwaitOrTopLevelSink(task *Task, a *Access) {
	task.Data.TaskwaitFragments.DeleteElem(a)

	region := a.Region()
	task.Data.BottomMap.ProcessIntersecting(region, func(entry *BottomMapEntry) *BottomMapEntry {
		if entry.Link.Task == task.Handle.ID() &&
			(entry.Link.Kind == ObjTaskwait || entry.Link.Kind == ObjTopLevelSink) {
			task.Data.BottomMap.DeleteElem(entry)
		}
		return entry
	})

	if step, ok := a.TakeReleaseStep(); ok {
		if pred, ok := task.Data.Accesses.Get(region); ok {
			pred.SetReleaseStep(step)
		}
	}
}
