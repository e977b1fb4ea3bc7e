package depgraph

import "github.com/Omargw/nanos6-cluster/region"

// ReductionInfo owns the per-CPU private slots backing a reduction over a
// region, and the logic to combine into them and, finally, into the
// original storage. Implementations are provided by the embedding runtime;
// the engine only calls this interface (spec §3, §4.7).
type ReductionInfo interface {
	// CombineRegion folds the given region into a private slot (or, when
	// canCombineToOriginal is true, into the original storage after all
	// private slots have been folded). It returns whether this call was the
	// last outstanding combination, i.e. the ReductionInfo can be freed.
	CombineRegion(r Region, slotSet ReductionSlotSet, canCombineToOriginal bool) bool
	// MakeOriginalAvailable publishes r as readable from the reduction's
	// original storage (called once read satisfiability is observed on a
	// reduction access whose slot set request has not yet combined).
	MakeOriginalAvailable(r Region)
	// ReleaseSlotsInUse releases the private slots a given CPU was using,
	// called when that CPU's last reduction access against this info
	// finishes without ever combining (spec §4.7).
	ReleaseSlotsInUse(cpu int32)
}

// ReductionSlotSet is the bitset of per-CPU private slots that have been
// written and must eventually be combined. It is opaque to the engine
// beyond OR-merging (spec §3, "reduction_slot_set").
type ReductionSlotSet uint64

// Merge returns the union of two slot sets.
func (s ReductionSlotSet) Merge(o ReductionSlotSet) ReductionSlotSet { return s | o }

// stepHandle is a move-only wrapper around an optional workflow step. It
// resolves the Open Question in spec.md §9 about release/link step
// ownership: Take clears the handle atomically with returning the step, so
// a step can fire (or be moved back onto an access, as
// removeBottomMapTaskwaitOrTopLevelSink does) at most once.
type stepHandle[T any] struct {
	step T
	set  bool
}

// Set stores step, replacing any previous (unfired) one.
func (h *stepHandle[T]) Set(step T) {
	h.step = step
	h.set = true
}

// Take removes and returns the stored step, if any.
func (h *stepHandle[T]) Take() (T, bool) {
	if !h.set {
		var zero T
		return zero, false
	}
	step := h.step
	var zero T
	h.step = zero
	h.set = false
	return step, true
}

// Present reports whether a step is currently stored.
func (h *stepHandle[T]) Present() bool { return h.set }

// Access is the central record of the engine: a single declared use of a
// region by one task, or one of the three synthetic flavors (Fragment,
// Taskwait, TopLevelSink) distinguished by ObjectKind, per spec §3 and §9's
// "collapse into one record" guidance.
type Access struct {
	Kind       AccessKind
	ObjectKind ObjectKind
	Weak       bool

	region      Region
	Originator  TaskId
	SymbolIndex int32

	Status Status

	Next *AccessLink

	ReductionInfo    ReductionInfo
	ReductionTypeOp  ReductionTypeOp
	ReductionSlotSet ReductionSlotSet

	Location       MemoryPlace
	OutputLocation MemoryPlace

	releaseStep stepHandle[DataReleaseStep]
	linkStep    stepHandle[DataLinkStep]

	// removalBlockerCounted is not read or written anywhere in this
	// package; the registration edge in handleStatusChanges fires once
	// because it keys on the Registered bit turning on.
	removalBlockerCounted bool
}

// NewAccess constructs an Access in its pre-registration state: no status
// bits set, not yet reachable. It becomes reachable once LinkTaskAccesses
// marks it Registered under the task lock (spec §3, Lifecycle).
func NewAccess(kind AccessKind, objKind ObjectKind, weak bool, r Region, originator TaskId, symbolIndex int32) *Access {
	return &Access{
		Kind:        kind,
		ObjectKind:  objKind,
		Weak:        weak,
		region:      r,
		Originator:  originator,
		SymbolIndex: symbolIndex,
		// The four CanPropagate* bits gate forwarding along Next/fragments
		// (spec §3, §4.2). Every access starts able to propagate; nothing in
		// this package's scope ever needs to suppress one of them, so they
		// are never cleared once set.
		Status: CanPropagateRead | CanPropagateConcurrent | CanPropagateCommutative | CanPropagateReductionInfo,
	}
}

// Span implements region.Elem.
func (a *Access) Span() region.Region { return a.region }

// SetSpan implements region.Elem.
func (a *Access) SetSpan(r region.Region) { a.region = r }

// Region returns the access's current region.
func (a *Access) Region() Region { return a.region }

// Clone implements region.Elem: it produces an independent Access carrying
// the same kind/status/reduction/location state, used when the region index
// splits a stored element across a boundary (spec §4.1's "duplicator").
// createInitialFragment also builds new fragments with Clone, so a fresh
// fragment starts with every status bit of the access it projects; only its
// ObjectKind and region are changed afterwards.
func (a *Access) Clone() *Access {
	c := *a
	c.releaseStep = a.releaseStep
	c.linkStep = a.linkStep
	return &c
}

// Satisfied reports whether a is not currently enforcing a dependency.
func (a *Access) Satisfied() bool { return a.Status.satisfied(a.Kind) }

// Removable reports whether a is discounted and referenced by no live
// successor chain (spec §3).
func (a *Access) Removable() bool { return a.Status.removable(a.Kind, a.ObjectKind) }

// SetReleaseStep installs a pending data-release step on this access.
func (a *Access) SetReleaseStep(s DataReleaseStep) {
	a.releaseStep.Set(s)
	a.Status = a.Status.Set(HasDataReleaseStep)
}

// SetLinkStep installs a pending data-link step on this access.
func (a *Access) SetLinkStep(s DataLinkStep) {
	a.linkStep.Set(s)
	a.Status = a.Status.Set(HasDataLinkStep)
}

// TakeReleaseStep removes and returns the pending release step, if any.
func (a *Access) TakeReleaseStep() (DataReleaseStep, bool) {
	s, ok := a.releaseStep.Take()
	if ok {
		a.Status = a.Status.Clear(HasDataReleaseStep)
	}
	return s, ok
}

// TakeLinkStep removes and returns the pending link step, if any.
func (a *Access) TakeLinkStep() (DataLinkStep, bool) {
	s, ok := a.linkStep.Take()
	if ok {
		a.Status = a.Status.Clear(HasDataLinkStep)
	}
	return s, ok
}
