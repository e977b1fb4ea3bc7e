package depgraph

// LinkTaskAccesses makes every access registered so far on task reachable,
// attaches it to the parent's bottom map, and propagates whatever initial
// satisfiability that produces (spec §4.5). It must be called exactly once
// per task, after all of that task's RegisterTaskDataAccess calls.
//
// Lock order is strict parent-before-child (spec §5): if task has a
// parent, its lock is acquired first and held for the duration of the
// whole call, since replaceMatchingInBottomMapLinkAndPropagate needs to
// mutate the parent's bottom map under both locks at once.
func (e *Engine) LinkTaskAccesses(task *Task, out *CPUDependencyData) {
	var parent *Task
	if pid, ok := task.Handle.Parent(); ok {
		if p, ok := e.cfg.Registry.Lookup(pid); ok {
			parent = p
		}
	}

	if parent != nil {
		g := parent.Data.Lock()
		defer g.Unlock()
	}
	guard := task.Data.Lock()
	defer guard.Unlock()

	var accesses []*Access
	task.Data.Accesses.ForEach(func(a *Access) bool {
		accesses = append(accesses, a)
		return true
	})

	for _, a := range accesses {
		before := Compute(a)
		a.Status = a.Status.Set(Registered | InBottomMap)
		after := Compute(a)
		e.handleStatusChanges(before.Diff(after), a, task, out)

		e.replaceMatchingInBottomMapLinkAndPropagate(parent, task, a, out)
	}
}

// replaceMatchingInBottomMapLinkAndPropagate is the structural heart of
// registration (spec §4.5). For the region a now covers it finds, creates,
// or declares missing a predecessor in the parent's bottom map; wires that
// predecessor's Next to a; and finally installs a's own bottom-map entry
// in task so a later grandchild can find it. When parent is nil (task is a
// top-level submission), every region is necessarily missing.
func (e *Engine) replaceMatchingInBottomMapLinkAndPropagate(parent *Task, task *Task, a *Access, out *CPUDependencyData) {
	r := a.Region()
	newLink := AccessLink{Task: task.Handle.ID(), Kind: a.ObjectKind}

	// parentChainKind is the tag of task's own bottom-map entry: None when
	// task has no parent (nothing upstream will ever close the region),
	// a.Kind otherwise. Entries added to the parent's bottom map are tagged
	// per region instead: a.Kind where they continue a chain the parent
	// already tracks or declared an access over (the matching and
	// initial-fragment branches), None for a missing hole.
	// CreateTopLevelSink only synthesizes a sink for None entries.
	parentChainKind := a.Kind

	if parent == nil {
		e.createMissingSuccessor(task, a, r, out)
		parentChainKind = None
	} else {
		parent.Data.BottomMap.ProcessIntersectingAndMissing(r,
			func(entry *BottomMapEntry) *BottomMapEntry {
				e.wirePredecessorLink(parent.Handle.ID(), entry.Link, a, out)
				entry.Link = newLink
				entry.AccessTypeOfParentChain = a.Kind
				entry.ReductionTypeOp = a.ReductionTypeOp
				return entry
			},
			func(hole Region) {
				if frag, fragOwner, ok := e.createInitialFragment(parent, hole, out); ok {
					e.wirePredecessor(fragOwner, AccessLink{Task: fragOwner.Handle.ID(), Kind: ObjFragment}, a, out)
					_ = frag
					parent.Data.BottomMap.Insert(NewBottomMapEntry(hole, newLink, a.Kind, a.ReductionTypeOp))
				} else {
					e.createMissingSuccessor(task, a, hole, out)
					parent.Data.BottomMap.Insert(NewBottomMapEntry(hole, newLink, None, a.ReductionTypeOp))
				}
			},
		)
	}

	task.Data.BottomMap.Insert(NewBottomMapEntry(r, newLink, parentChainKind, a.ReductionTypeOp))
}

// wirePredecessorLink resolves predLink's owning task (locking it if it
// differs from the task whose lock the caller already holds) and wires it
// as a's predecessor via wirePredecessor.
func (e *Engine) wirePredecessorLink(heldTaskID TaskId, predLink AccessLink, a *Access, out *CPUDependencyData) {
	e.withLockedOwner(heldTaskID, predLink, func(owner *Task) {
		e.wirePredecessor(owner, predLink, a, out)
	})
}

// wirePredecessor resolves predLink's concrete access(es) within owner
// (whose lock is already held, since it is either the parent itself or a
// fragment just created on it) and gives each a as its Next, reacting to
// whatever that flips — including closing a mismatched reduction before
// the new access takes over the chain (spec §4.5, §4.7).
//
// The predecessor is fragmented down to a.Region() first via
// ProcessIntersecting, mirroring followLink's fragmentAccessObject call
// inside processIntersecting (DataAccessRegistration.cpp): a successor
// covering only a sub-region of a coarser predecessor access must still
// link against exactly its own span, leaving the predecessor's remaining
// bytes (if any) as a separate, still-unwired access.
func (e *Engine) wirePredecessor(owner *Task, predLink AccessLink, a *Access, out *CPUDependencyData) {
	idx := owner.Data.indexFor(predLink.Kind)
	idx.ProcessIntersecting(a.Region(), func(pred *Access) *Access {
		e.wireOnePredecessor(owner, pred, a, out)
		return pred
	})
}

// wireOnePredecessor applies the actual predecessor-to-successor wiring
// once pred's span has already been fragmented down to exactly a.Region().
func (e *Engine) wireOnePredecessor(owner *Task, pred *Access, a *Access, out *CPUDependencyData) {
	// pred has not yet finished its task body (Complete), so a genuinely
	// has to wait behind it: pred.Satisfied() alone is not the right test
	// here, since a leaf access can be Satisfied (all its own
	// satisfiability bits set) while still incomplete — write propagation
	// to Next is gated on Complete specifically (spec §4.2's table), which
	// is exactly the case a waiting successor blocks on.
	if !pred.Status.Has(Complete) && e.cfg.OnContentionEvent != nil {
		e.cfg.OnContentionEvent(a.Originator, pred.Originator, a.Region())
	}

	if a.Kind == Reduction {
		if pred.Kind != Reduction || pred.ReductionTypeOp != a.ReductionTypeOp {
			if pred.Kind == Reduction && pred.ReductionInfo != nil {
				before := Compute(pred)
				pred.Status = pred.Status.Set(ClosesReduction)
				after := Compute(pred)
				e.handleStatusChanges(before.Diff(after), pred, owner, out)
			}
			a.ReductionInfo = NewInMemoryReductionInfo(a.Region(), a.ReductionTypeOp, 1)
			a.Status = a.Status.Set(AllocatedReductionInfo)
			e.subs.reduce.Trace("allocated reduction info", "region", a.Region(), "task", a.Originator)
		} else {
			a.ReductionInfo = pred.ReductionInfo
		}
	}

	before := Compute(pred)
	link := AccessLink{Task: a.Originator, Kind: a.ObjectKind}
	pred.Next = &link
	pred.Status = pred.Status.Set(HasNext)
	pred.Status = pred.Status.Clear(InBottomMap)
	after := Compute(pred)
	e.handleStatusChanges(before.Diff(after), pred, owner, out)
}

// createInitialFragment looks for an existing access on parent whose span
// fully contains hole and, if found, projects a new Fragment covering hole
// onto it (spec §4.5's "initial-fragment creation": "if the region is
// inside a parent access that has no children yet, synthesize a fragment
// on the parent for that region, inheriting status and location").
//
// Grounded on createInitialFragment (DataAccessRegistration.cpp:1665-1745):
// the parent access itself is never split or removed from Accesses — only
// a brand new Fragment object, covering exactly hole, is created and
// inserted into Fragments. The parent is instead marked HasSubaccesses, so
// that from this point on it propagates satisfiability through its
// fragments (Compute's *ToFragments predicates) rather than directly to
// its own Next; finalizeAllAccesses later completes both the parent and
// every fragment independently. Containing is the non-destructive lookup
// this requires, since the parent's own full span must survive untouched.
func (e *Engine) createInitialFragment(parent *Task, hole Region, out *CPUDependencyData) (*Access, *Task, bool) {
	src, ok := parent.Data.Accesses.Containing(hole)
	if !ok {
		return nil, nil, false
	}

	frag := src.Clone()
	frag.ObjectKind = ObjFragment
	frag.SetSpan(hole)
	parent.Data.Fragments.Insert(frag)

	before := Compute(src)
	src.Status = src.Status.Set(HasSubaccesses)
	after := Compute(src)
	e.handleStatusChanges(before.Diff(after), src, parent, out)

	return frag, parent, true
}

// createMissingSuccessor builds the locally-satisfied successor spec
// §4.5's "missing" branch describes: the region is outside any parent
// access (or there is no parent at all), so a starts the chain itself
// rather than waiting on a predecessor. A remote (cluster-offloaded) task
// gets neither read/write satisfiability nor a local place here; both
// arrive later via PropagateSatisfiability.
func (e *Engine) createMissingSuccessor(task *Task, a *Access, region Region, out *CPUDependencyData) {
	before := Compute(a)
	a.Status = a.Status.Set(ConcurrentSatisfied | CommutativeSatisfied | ReceivedReductionInfo | Topmost | TopLevel)
	if a.Kind == Reduction {
		a.ReductionInfo = NewInMemoryReductionInfo(a.Region(), a.ReductionTypeOp, 1)
		a.Status = a.Status.Set(AllocatedReductionInfo)
	}
	if !e.isRemote(task) {
		a.Status = a.Status.Set(ReadSatisfied | WriteSatisfied)
		if e.cfg.Oracle != nil {
			a.Location = e.cfg.Oracle.DirectoryPlaceFor(region)
		} else {
			a.Location = LocalPlace
		}
	}
	after := Compute(a)
	e.handleStatusChanges(before.Diff(after), a, task, out)
}
