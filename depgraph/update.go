package depgraph

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// UpdateOperation is a deferred cross-task mutation produced by diffing two
// StatusEffects snapshots around a single access mutation (spec §4.3,
// §4.4). Its Target names the access (or fragment set) it must be applied
// to via an AccessLink, resolved through the Registry at apply time rather
// than carrying a pointer (spec §9).
type UpdateOperation struct {
	Target Region
	// TargetLink names which task/object-kind the operation applies to.
	TargetLink AccessLink

	MakeReadSatisfied        bool
	MakeWriteSatisfied       bool
	MakeConcurrentSatisfied  bool
	MakeCommutativeSatisfied bool

	HasLocation bool
	Location    MemoryPlace

	SetReductionInfo bool
	ReductionInfo    ReductionInfo
	ReductionSlotSet ReductionSlotSet

	MakeTopmost  bool
	MakeTopLevel bool
}

// BottomMapUpdateOperation rewires every access a task's bottom map
// currently reaches over r so that it chains through Next instead,
// inhibiting further propagation from the subtree the bottom map
// previously tracked directly (spec §4.3's "bottom-map update edge",
// §4.4's "two kinds of operations the update engine applies").
type BottomMapUpdateOperation struct {
	Task   TaskId
	Region Region
	Next   AccessLink
}

// ReleasedCommutativeRegion names a task whose commutative accesses just
// finished (queued by the release path, drained first in a cycle per
// spec §4.4 step 1).
type ReleasedCommutativeRegion struct {
	Task TaskId
}

// CompletedTaskwait pairs a taskwait access with the task it belongs to,
// queued for the workflow collaborator (spec §4.3's "taskwait trigger").
type CompletedTaskwait struct {
	Task   TaskId
	Access *Access
}

// CPUDependencyData is the per-call-site queue of deferred consequences a
// single engine entry point accumulates before draining them (spec §5,
// §9's "Deferred operations... per-call-site, thread-local for the
// duration of one engine entry"). It is not safe for concurrent use by
// more than one goroutine at a time; claim/release assert that with a
// compare-exchange debug flag mirroring the teacher's
// syncutil.Mutex-adjacent single-writer assertions.
type CPUDependencyData struct {
	consumed int32

	DelayedOperations               []UpdateOperation
	SatisfiedOriginators            []TaskId
	SatisfiedCommutativeOriginators []TaskId
	ReleasedCommutativeRegions      []ReleasedCommutativeRegion
	CompletedTaskwaits              []CompletedTaskwait
	RemovableTasks                  []TaskId
}

// claim asserts that no other goroutine currently holds this
// CPUDependencyData and marks it held.
func (d *CPUDependencyData) claim() {
	if !atomic.CompareAndSwapInt32(&d.consumed, 0, 1) {
		panic(errors.AssertionFailedf("depgraph: CPUDependencyData claimed by more than one consumer"))
	}
}

// release marks this CPUDependencyData free for reuse by a later entry
// point call on the same goroutine.
func (d *CPUDependencyData) release() {
	atomic.StoreInt32(&d.consumed, 0)
}

// applyUpdateOperationOnAccess applies op's requested bit changes to a and
// returns the before/after StatusEffects diff, per spec §4.4:
// "apply_update_operation_on_access... records initial status, applies the
// requested bit changes..., records updated status".
func applyUpdateOperationOnAccess(a *Access, op UpdateOperation) Diff {
	before := Compute(a)

	if op.MakeReadSatisfied {
		a.Status = a.Status.Set(ReadSatisfied)
		if op.HasLocation {
			a.Location = op.Location
		}
	}
	if op.MakeWriteSatisfied {
		a.Status = a.Status.Set(WriteSatisfied)
	}
	if op.MakeConcurrentSatisfied {
		a.Status = a.Status.Set(ConcurrentSatisfied)
	}
	if op.MakeCommutativeSatisfied {
		a.Status = a.Status.Set(CommutativeSatisfied)
	}
	if op.SetReductionInfo {
		a.ReductionInfo = op.ReductionInfo
		a.Status = a.Status.Set(ReceivedReductionInfo)
	}
	if op.ReductionSlotSet != 0 {
		a.ReductionSlotSet = a.ReductionSlotSet.Merge(op.ReductionSlotSet)
		a.Status = a.Status.Set(ReceivedReductionSlotSet)
	}
	if op.MakeTopmost {
		a.Status = a.Status.Set(Topmost)
	}
	if op.MakeTopLevel {
		a.Status = a.Status.Set(TopLevel)
	}

	after := Compute(a)
	return before.Diff(after)
}

// processUpdateOperation applies op to every access its target index holds
// intersecting op.Target, fragmenting to fit first, per spec §4.4:
// "iterate the index selected by op.target.object_kind, for each
// intersecting element fragment to op.region and then
// apply_update_operation_on_access". Resolves and locks the target task;
// unlocks before returning. A target that no longer resolves (the task was
// already disposed) is silently dropped — a stale operation racing
// disposal is expected, not an invariant violation, since disposal only
// happens once a task's removal_blockers has reached zero.
func (e *Engine) processUpdateOperation(op UpdateOperation, out *CPUDependencyData) {
	target, ok := e.cfg.Registry.Lookup(op.TargetLink.Task)
	if !ok {
		return
	}
	guard := target.Data.Lock()
	defer guard.Unlock()

	idx := target.Data.indexFor(op.TargetLink.Kind)
	idx.ProcessIntersecting(op.Target, func(a *Access) *Access {
		diff := applyUpdateOperationOnAccess(a, op)
		e.handleStatusChanges(diff, a, target, out)
		return a
	})
}

// processDelayedOperations drains out.DelayedOperations one entry at a
// time, releasing each target's lock before taking the next (spec §4.4:
// "the drain must release each lock before taking another to avoid
// lock-order cycles"). handleStatusChanges may append further operations
// while draining; the index-based loop picks those up in the same pass.
func (e *Engine) processDelayedOperations(out *CPUDependencyData) {
	for i := 0; i < len(out.DelayedOperations); i++ {
		e.processUpdateOperation(out.DelayedOperations[i], out)
	}
	out.DelayedOperations = out.DelayedOperations[:0]
}

// processBottomMapUpdate implements the bottom-map update edge (spec
// §4.3): every bottom-map entry of task intersecting r currently names a
// successor access; that access is rewired to chain through next instead
// of terminating the subtree's propagation at task's bottom map. Per spec
// §5, this briefly acquires the successor's owning task lock when that
// task differs from the caller's (already-held) lock; the relation is
// acyclic because a bottom-map successor can never itself have named the
// holding task as its own successor.
func (e *Engine) processBottomMapUpdate(op BottomMapUpdateOperation, out *CPUDependencyData) {
	task, ok := e.cfg.Registry.Lookup(op.Task)
	if !ok {
		return
	}
	task.Data.BottomMap.ProcessIntersecting(op.Region, func(entry *BottomMapEntry) *BottomMapEntry {
		link := entry.Link
		if link.Task == op.Task {
			idx := task.Data.indexFor(link.Kind)
			if succ, found := idx.Get(entry.Region()); found {
				e.rewireSuccessor(task, succ, op.Next, out)
			}
			return entry
		}
		owner, found := e.cfg.Registry.Lookup(link.Task)
		if !found {
			return entry
		}
		guard := owner.Data.Lock()
		idx := owner.Data.indexFor(link.Kind)
		if succ, found := idx.Get(entry.Region()); found {
			e.rewireSuccessor(owner, succ, op.Next, out)
		}
		guard.Unlock()
		return entry
	})
}

// withLockedOwner resolves predLink's owning task and invokes fn with its
// data lock held, unless that owner is already the caller's held task
// (identified by heldTaskID), in which case no extra lock is taken. This is
// the general form of the "briefly acquires child-task locks" pattern used
// both by bottom-map rewiring and by predecessor wiring during linking and
// taskwait creation (spec §5).
func (e *Engine) withLockedOwner(heldTaskID TaskId, predLink AccessLink, fn func(owner *Task)) {
	if predLink.Task == heldTaskID {
		owner, ok := e.cfg.Registry.Lookup(heldTaskID)
		if ok {
			fn(owner)
		}
		return
	}
	owner, ok := e.cfg.Registry.Lookup(predLink.Task)
	if !ok {
		return
	}
	g := owner.Data.Lock()
	fn(owner)
	g.Unlock()
}

// rewireSuccessor gives succ a Next link and clears InBottomMap, then
// reacts to whatever that flips in its own status effects (e.g. it may now
// propagate satisfiability onward instead of sitting at the bottom map).
// owner's task lock must already be held by the caller.
func (e *Engine) rewireSuccessor(owner *Task, succ *Access, next AccessLink, out *CPUDependencyData) {
	before := Compute(succ)
	nextCopy := next
	succ.Next = &nextCopy
	succ.Status = succ.Status.Set(HasNext)
	succ.Status = succ.Status.Clear(InBottomMap)
	after := Compute(succ)
	e.handleStatusChanges(before.Diff(after), succ, owner, out)
}

// propagationToNextOp builds the UpdateOperation for a's "next" successor if
// any propagates-to-next predicate flipped in diff, or the zero value with
// ok=false if none did.
func propagationToNextOp(diff Diff, a *Access) (UpdateOperation, bool) {
	if a.Next == nil {
		return UpdateOperation{}, false
	}
	op := UpdateOperation{Target: a.Region(), TargetLink: *a.Next}
	any := false
	if diff.PropagatesReadToNext() {
		op.MakeReadSatisfied = true
		op.HasLocation = a.Location.Valid()
		op.Location = a.Location
		any = true
	}
	if diff.PropagatesWriteToNext() {
		op.MakeWriteSatisfied = true
		any = true
	}
	if diff.PropagatesConcurrentToNext() {
		op.MakeConcurrentSatisfied = true
		any = true
	}
	if diff.PropagatesCommutativeToNext() {
		op.MakeCommutativeSatisfied = true
		any = true
	}
	if diff.PropagatesReductionInfoToNext() {
		op.SetReductionInfo = true
		op.ReductionInfo = a.ReductionInfo
		any = true
	}
	if diff.PropagatesReductionSlotSetToNext() {
		op.ReductionSlotSet = a.ReductionSlotSet
		any = true
	}
	if diff.PropagatesTopmostToNext() {
		op.MakeTopmost = true
		any = true
	}
	if diff.PropagatesTopLevelToNext() {
		op.MakeTopLevel = true
		any = true
	}
	return op, any
}

// propagationToFragmentsOp mirrors propagationToNextOp but targets the
// owning task's own Fragment index (spec §4.3's "Propagation-to-fragments
// edges: same shape but target = (task, Fragment)").
func propagationToFragmentsOp(diff Diff, a *Access, owner TaskId) (UpdateOperation, bool) {
	op := UpdateOperation{Target: a.Region(), TargetLink: AccessLink{Task: owner, Kind: ObjFragment}}
	any := false
	if diff.PropagatesReadToFragments() {
		op.MakeReadSatisfied = true
		op.HasLocation = a.Location.Valid()
		op.Location = a.Location
		any = true
	}
	if diff.PropagatesWriteToFragments() {
		op.MakeWriteSatisfied = true
		any = true
	}
	if diff.PropagatesConcurrentToFragments() {
		op.MakeConcurrentSatisfied = true
		any = true
	}
	if diff.PropagatesCommutativeToFragments() {
		op.MakeCommutativeSatisfied = true
		any = true
	}
	if diff.PropagatesReductionInfoToFragments() {
		op.SetReductionInfo = true
		op.ReductionInfo = a.ReductionInfo
		any = true
	}
	if diff.PropagatesReductionSlotSetToFragments() {
		op.ReductionSlotSet = a.ReductionSlotSet
		any = true
	}
	return op, any
}

// handleStatusChanges is the core dispatcher (spec §4.3): given the diff
// between an access's status effects before and after a mutation, it
// enacts every transition that flipped and queues the deferred operations
// that transition requires. The caller must hold task.Data's lock.
func (e *Engine) handleStatusChanges(diff Diff, a *Access, task *Task, out *CPUDependencyData) {
	task.Data.AssertLocked()

	if diff.RegisteredEdge() {
		task.Data.RemovalBlockers++
		if task.Data.RemovalBlockers == 1 {
			task.Handle.IncreaseRemovalBlockingCount()
		}
		if a.ObjectKind == ObjTaskwait {
			task.Data.LiveTaskwaitFragments++
		}
		// Weak commutative accesses never block on the scoreboard (spec
		// §4.6), so they must not count toward the byte budget either;
		// grounded on DataAccessRegistration.cpp:569's !access->isWeak()
		// gate on the equivalent accounting step.
		if a.Kind == Commutative && !a.Weak {
			task.Data.TotalCommutativeBytes += a.Region().Len
			task.Data.CommutativeRegions = append(task.Data.CommutativeRegions, a.Region())
		}
		if diff.EnforcesDependencyNow() {
			task.Handle.IncreasePredecessors(1)
		}
	}

	if diff.DependencyReleasedEdge() {
		if task.Handle.DecreasePredecessors(1) {
			if a.Kind == Commutative {
				out.SatisfiedCommutativeOriginators = append(out.SatisfiedCommutativeOriginators, task.Handle.ID())
			} else {
				out.SatisfiedOriginators = append(out.SatisfiedOriginators, task.Handle.ID())
			}
		}
	}

	if diff.MakesReductionOriginalAvailable() && a.ReductionInfo != nil {
		a.ReductionInfo.MakeOriginalAvailable(a.Region())
	}
	if diff.CombinesReductionToPrivate() && a.ReductionInfo != nil {
		last := a.ReductionInfo.CombineRegion(a.Region(), a.ReductionSlotSet, false)
		assertf(!last, "depgraph: private reduction combine reported last combiner for task %s", task.Handle.ID())
	}
	if diff.CombinesReductionToOriginal() && a.ReductionInfo != nil {
		if a.ReductionInfo.CombineRegion(a.Region(), a.ReductionSlotSet, true) {
			a.ReductionInfo = nil
		}
	}

	if op, ok := propagationToNextOp(diff, a); ok {
		out.DelayedOperations = append(out.DelayedOperations, op)
	}
	if op, ok := propagationToFragmentsOp(diff, a, task.Handle.ID()); ok {
		out.DelayedOperations = append(out.DelayedOperations, op)
	}

	if diff.LinksBottomMapToNextAndInhibits() && a.Next != nil {
		e.processBottomMapUpdate(BottomMapUpdateOperation{
			Task:   task.Handle.ID(),
			Region: a.Region(),
			Next:   *a.Next,
		}, out)
	}

	if diff.TriggersTaskwaitWorkflow() {
		out.CompletedTaskwaits = append(out.CompletedTaskwaits, CompletedTaskwait{Task: task.Handle.ID(), Access: a})
	}

	if diff.TriggersDataReleaseStep() {
		if step, ok := a.TakeReleaseStep(); ok {
			step.ReleaseRegion(a.Region(), a.Location)
		}
	}

	if diff.TriggersDataLinkRead() || diff.TriggersDataLinkWrite() {
		if a.linkStep.Present() {
			step := a.linkStep.step
			step.LinkRegion(a.Region(), a.Location, diff.TriggersDataLinkRead(), diff.TriggersDataLinkWrite())
			if a.Status.Has(ReadSatisfied | WriteSatisfied) {
				a.TakeLinkStep()
			}
		}
	}

	if diff.RemovalEdge() {
		e.handleRemoval(diff, a, task, out)
	}
}

// handleRemoval implements the removal edge (spec §4.3's last bullet).
func (e *Engine) handleRemoval(diff Diff, a *Access, task *Task, out *CPUDependencyData) {
	task.Data.RemovalBlockers--
	a.Status = a.Status.Set(Discounted)

	if a.ObjectKind == ObjTaskwait {
		task.Data.Accesses.ProcessIntersecting(a.Region(), func(p *Access) *Access {
			p.ReductionSlotSet = p.ReductionSlotSet.Merge(a.ReductionSlotSet)
			return p
		})
		task.Data.LiveTaskwaitFragments--
		if task.Data.LiveTaskwaitFragments == 0 {
			if task.Handle.DecreaseBlockingCount() {
				out.SatisfiedOriginators = append(out.SatisfiedOriginators, task.Handle.ID())
			}
		}
	}

	if a.Kind == Commutative && a.ObjectKind == ObjAccess {
		out.ReleasedCommutativeRegions = append(out.ReleasedCommutativeRegions, ReleasedCommutativeRegion{Task: task.Handle.ID()})
	}

	if a.Next == nil {
		e.eraseAccess(task, a)
	}

	if task.Data.RemovalBlockers == 0 {
		if task.Handle.DecreaseRemovalBlockingCount() {
			e.subs.update.Trace("task fully discounted", "task", task.Handle.ID())
			out.RemovableTasks = append(out.RemovableTasks, task.Handle.ID())
		}
	}
}

// eraseAccess removes a from its owning index, plus any object-kind
// specific bottom-map teardown (spec §4.6 for taskwait/top-level-sink
// kinds, handled by removeBottomMapTaskwaitOrTopLevelSink in taskwait.go).
func (e *Engine) eraseAccess(task *Task, a *Access) {
	switch a.ObjectKind {
	case ObjTaskwait, ObjTopLevelSink:
		e.removeBottomMapTaskwaitOrTopLevelSink(task, a)
	default:
		task.Data.indexFor(a.ObjectKind).DeleteElem(a)
	}
}

// runDrainCycle performs one full drain per the ordering spec §4.4
// requires:
//  1. commutative releases processed first
//  2. delayed operations drain
//  3. completed taskwaits handed to the workflow setup
//  4. satisfied commutative originators evaluated by the scoreboard
//  5. all satisfied originators published to the ready sink
//  6. removable tasks disposed
func (e *Engine) runDrainCycle(out *CPUDependencyData) {
	for _, rel := range out.ReleasedCommutativeRegions {
		e.cfg.Scoreboard.ProcessReleasedCommutativeRegions(rel.Task, out)
	}
	out.ReleasedCommutativeRegions = out.ReleasedCommutativeRegions[:0]

	e.processDelayedOperations(out)

	for _, ct := range out.CompletedTaskwaits {
		if e.cfg.Workflow != nil {
			e.cfg.Workflow.SetupTaskwaitWorkflow(ct.Task, ct.Access)
		}
	}
	out.CompletedTaskwaits = out.CompletedTaskwaits[:0]

	for _, id := range out.SatisfiedCommutativeOriginators {
		task, ok := e.cfg.Registry.Lookup(id)
		if !ok {
			continue
		}
		exclusive := task.Data.TotalCommutativeBytes > e.cfg.MaxCommutativeBytesPerTask
		if e.cfg.Scoreboard.AddAndEvaluateTask(id, task.Data.CommutativeRegions, exclusive) {
			out.SatisfiedOriginators = append(out.SatisfiedOriginators, id)
		}
	}
	out.SatisfiedCommutativeOriginators = out.SatisfiedCommutativeOriginators[:0]

	for _, id := range out.SatisfiedOriginators {
		if e.cfg.Sink != nil {
			e.cfg.Sink.AddReadyTask(id, HintUnblocked)
		}
	}
	out.SatisfiedOriginators = out.SatisfiedOriginators[:0]

	for _, id := range out.RemovableTasks {
		e.disposeTask(id)
	}
	out.RemovableTasks = out.RemovableTasks[:0]
}

// disposeTask removes a fully-removable task from the registry. The
// teacher's original followed the ancestor chain to recursively collapse
// parents that only became removable because their last child did; this
// engine leaves ancestor re-evaluation to the embedding runtime's own
// unregister call (CreateTopLevelSink already produces the access whose
// removal, here, triggers this), since the runtime — not this package —
// owns the parent/child task tree beyond AccessLink's scope.
func (e *Engine) disposeTask(id TaskId) {
	e.cfg.Registry.Forget(id)
}
