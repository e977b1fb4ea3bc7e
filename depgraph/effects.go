package depgraph

// StatusEffects is the record of derived predicates spec §4.2 describes:
// calling Compute twice around a mutation and diffing the two results
// (via Diff) enumerates every consequence handleStatusChanges must enact.
// Field names mirror the spec table directly.
type StatusEffects struct {
	Registered         bool
	EnforcesDependency bool
	Satisfied          bool

	MakesReductionOriginalAvailable bool
	CombinesReductionToPrivate      bool
	CombinesReductionToOriginal     bool

	PropagatesReadToNext             bool
	PropagatesWriteToNext            bool
	PropagatesConcurrentToNext       bool
	PropagatesCommutativeToNext      bool
	PropagatesReductionInfoToNext    bool
	PropagatesReductionSlotSetToNext bool
	PropagatesTopmostToNext          bool
	PropagatesTopLevelToNext         bool

	PropagatesReadToFragments             bool
	PropagatesWriteToFragments            bool
	PropagatesConcurrentToFragments       bool
	PropagatesCommutativeToFragments      bool
	PropagatesReductionInfoToFragments    bool
	PropagatesReductionSlotSetToFragments bool

	LinksBottomMapToNextAndInhibits bool
	TriggersTaskwaitWorkflow        bool
	TriggersDataReleaseStep         bool
	TriggersDataLinkRead            bool
	TriggersDataLinkWrite           bool

	IsRemovable    bool
	ShouldDiscount bool
	HasSuccessor   bool
}

// Compute derives the full StatusEffects record for a's current state. It
// is a pure function of a's fields; it does not mutate a and does not
// require the task lock (though callers invoke it under the lock, since
// a's fields are only safe to read there once reachable).
func Compute(a *Access) StatusEffects {
	s := a.Status
	kind := a.Kind
	leaf := !s.Has(HasSubaccesses)
	hasNext := s.Has(HasNext)
	closesReduction := s.Has(ClosesReduction)

	satisfied := s.satisfied(kind)
	enforcesDep := !a.Weak && !satisfied && a.ObjectKind == ObjAccess &&
		!(kind == Reduction && s.Any(ReceivedReductionInfo|AllocatedReductionInfo))

	combinesToPrivate := closesReduction && leaf && s.Has(Complete) &&
		s.Any(AllocatedReductionInfo|ReceivedReductionSlotSet)
	combinesToOriginal := combinesToPrivate && satisfied
	makesOriginalAvailable := kind == Reduction && s.Has(ReadSatisfied) && !closesReduction

	// Read/write propagation to Next takes one of three shapes, grounded on
	// the three branches of the original's DataAccessStatusEffects
	// constructor (DataAccessRegistration.cpp:240-331):
	//
	//   - an access with subaccesses never propagates write directly to its
	//     own Next (write flows through its fragments instead, see
	//     propWriteFrag below); read still propagates, gated only by kind,
	//     not by satisfied/complete, since a parent with subaccesses is not
	//     itself waiting on reduction combination.
	//   - a Fragment/Taskwait/TopLevelSink object propagates plain
	//     writeSatisfied/readSatisfied with no further gating: these object
	//     kinds are themselves projections, not something reductions combine
	//     into, so there is nothing to race ahead of.
	//   - a plain leaf access (ObjAccess, no subaccesses) gates both on
	//     satisfied(); write always also needs complete(), and read does
	//     too unless the access kind is Read or None — documented in the
	//     original as existing "because otherwise read satisfiability could
	//     be propagated before reductions are combined".
	var propWrite, propReadGate bool
	switch {
	case s.Has(HasSubaccesses):
		propWrite = false
		propReadGate = kind == Read || kind == None
	case a.ObjectKind != ObjAccess:
		propWrite = s.Has(WriteSatisfied)
		propReadGate = true
	default:
		propWrite = s.Has(WriteSatisfied) && s.Has(Complete) && satisfied
		propReadGate = satisfied && (kind == Read || kind == None || s.Has(Complete))
	}
	propWrite = propWrite && hasNext
	propWriteFrag := s.Has(HasSubaccesses) && s.Has(WriteSatisfied)

	propRedSlotSet := kind == Reduction && hasNext && s.Has(Complete) &&
		s.Has(ReceivedReductionInfo) && !closesReduction &&
		s.Any(AllocatedReductionInfo|ReceivedReductionSlotSet)
	propRedSlotSetFrag := kind == Reduction && s.Has(HasSubaccesses) &&
		s.Any(AllocatedReductionInfo|ReceivedReductionSlotSet)

	removable := s.removable(kind, a.ObjectKind)

	return StatusEffects{
		Registered:         s.Has(Registered),
		EnforcesDependency: enforcesDep,
		Satisfied:          satisfied,

		MakesReductionOriginalAvailable: makesOriginalAvailable,
		CombinesReductionToPrivate:      combinesToPrivate,
		CombinesReductionToOriginal:     combinesToOriginal,

		PropagatesReadToNext:             hasNext && s.Has(CanPropagateRead) && s.Has(ReadSatisfied) && propReadGate,
		PropagatesWriteToNext:            propWrite,
		PropagatesConcurrentToNext:       hasNext && s.Has(CanPropagateConcurrent) && s.Has(ConcurrentSatisfied),
		PropagatesCommutativeToNext:      hasNext && s.Has(CanPropagateCommutative) && s.Has(CommutativeSatisfied),
		PropagatesReductionInfoToNext:    hasNext && s.Has(CanPropagateReductionInfo) && s.Has(ReceivedReductionInfo),
		PropagatesReductionSlotSetToNext: propRedSlotSet,
		PropagatesTopmostToNext:          hasNext && s.Has(Topmost),
		PropagatesTopLevelToNext:         hasNext && s.Has(TopLevel),

		PropagatesReadToFragments:             s.Has(HasSubaccesses) && s.Has(CanPropagateRead) && s.Has(ReadSatisfied),
		PropagatesWriteToFragments:            propWriteFrag,
		PropagatesConcurrentToFragments:       s.Has(HasSubaccesses) && s.Has(CanPropagateConcurrent) && s.Has(ConcurrentSatisfied),
		PropagatesCommutativeToFragments:      s.Has(HasSubaccesses) && s.Has(CanPropagateCommutative) && s.Has(CommutativeSatisfied),
		PropagatesReductionInfoToFragments:    kind == Reduction && s.Has(HasSubaccesses) && s.Has(CanPropagateReductionInfo) && s.Has(ReceivedReductionInfo),
		PropagatesReductionSlotSetToFragments: propRedSlotSetFrag,

		LinksBottomMapToNextAndInhibits: hasNext && s.Has(Complete) && s.Has(HasSubaccesses),
		TriggersTaskwaitWorkflow:        a.ObjectKind == ObjTaskwait && s.Has(ReadSatisfied) && s.Has(WriteSatisfied) && s.Has(HasOutputLocation),
		TriggersDataReleaseStep:         s.Has(HasDataReleaseStep) && s.Has(Complete),
		TriggersDataLinkRead:            s.Has(HasDataLinkStep) && s.Has(ReadSatisfied),
		TriggersDataLinkWrite:           s.Has(HasDataLinkStep) && s.Has(WriteSatisfied),

		IsRemovable:    removable,
		ShouldDiscount: removable && !s.Has(Discounted),
		HasSuccessor:   hasNext,
	}
}

// Diff reports, for every predicate, whether it flipped from false in
// before to true in after. Apart from DependencyReleasedEdge (a true->false
// edge, below), handleStatusChanges only reacts to false->true transitions:
// every satisfiability bit is monotone (Testable
// Property 2), so a predicate built from monotone bits can only turn on,
// never off, across a single mutation.
type Diff struct {
	before, after StatusEffects
}

func (b StatusEffects) Diff(a StatusEffects) Diff { return Diff{before: b, after: a} }

func flips(before, after bool) bool { return !before && after }

func (d Diff) RegisteredEdge() bool { return flips(d.before.Registered, d.after.Registered) }

// EnforcesDependencyNow reports the post-mutation value of enforces_dependency,
// used by the registration edge to decide whether to increase the task's
// predecessor count (spec §4.3: "if updated.enforces_dep, task.predecessors += 1").
func (d Diff) EnforcesDependencyNow() bool { return d.after.EnforcesDependency }

// DependencyReleasedEdge is the one edge that fires on a true->false
// transition: enforces_dependency drops once the access becomes satisfied,
// unlike every other predicate here which is built from monotone bits.
func (d Diff) DependencyReleasedEdge() bool {
	return d.before.EnforcesDependency && !d.after.EnforcesDependency
}
func (d Diff) MakesReductionOriginalAvailable() bool {
	return flips(d.before.MakesReductionOriginalAvailable, d.after.MakesReductionOriginalAvailable)
}
func (d Diff) CombinesReductionToPrivate() bool {
	return flips(d.before.CombinesReductionToPrivate, d.after.CombinesReductionToPrivate)
}
func (d Diff) CombinesReductionToOriginal() bool {
	return flips(d.before.CombinesReductionToOriginal, d.after.CombinesReductionToOriginal)
}
func (d Diff) PropagatesReadToNext() bool {
	return flips(d.before.PropagatesReadToNext, d.after.PropagatesReadToNext)
}
func (d Diff) PropagatesWriteToNext() bool {
	return flips(d.before.PropagatesWriteToNext, d.after.PropagatesWriteToNext)
}
func (d Diff) PropagatesConcurrentToNext() bool {
	return flips(d.before.PropagatesConcurrentToNext, d.after.PropagatesConcurrentToNext)
}
func (d Diff) PropagatesCommutativeToNext() bool {
	return flips(d.before.PropagatesCommutativeToNext, d.after.PropagatesCommutativeToNext)
}
func (d Diff) PropagatesReductionInfoToNext() bool {
	return flips(d.before.PropagatesReductionInfoToNext, d.after.PropagatesReductionInfoToNext)
}
func (d Diff) PropagatesReductionSlotSetToNext() bool {
	return flips(d.before.PropagatesReductionSlotSetToNext, d.after.PropagatesReductionSlotSetToNext)
}
func (d Diff) PropagatesTopmostToNext() bool {
	return flips(d.before.PropagatesTopmostToNext, d.after.PropagatesTopmostToNext)
}
func (d Diff) PropagatesTopLevelToNext() bool {
	return flips(d.before.PropagatesTopLevelToNext, d.after.PropagatesTopLevelToNext)
}
func (d Diff) PropagatesReadToFragments() bool {
	return flips(d.before.PropagatesReadToFragments, d.after.PropagatesReadToFragments)
}
func (d Diff) PropagatesWriteToFragments() bool {
	return flips(d.before.PropagatesWriteToFragments, d.after.PropagatesWriteToFragments)
}
func (d Diff) PropagatesConcurrentToFragments() bool {
	return flips(d.before.PropagatesConcurrentToFragments, d.after.PropagatesConcurrentToFragments)
}
func (d Diff) PropagatesCommutativeToFragments() bool {
	return flips(d.before.PropagatesCommutativeToFragments, d.after.PropagatesCommutativeToFragments)
}
func (d Diff) PropagatesReductionInfoToFragments() bool {
	return flips(d.before.PropagatesReductionInfoToFragments, d.after.PropagatesReductionInfoToFragments)
}
func (d Diff) PropagatesReductionSlotSetToFragments() bool {
	return flips(d.before.PropagatesReductionSlotSetToFragments, d.after.PropagatesReductionSlotSetToFragments)
}
func (d Diff) LinksBottomMapToNextAndInhibits() bool {
	return flips(d.before.LinksBottomMapToNextAndInhibits, d.after.LinksBottomMapToNextAndInhibits)
}
func (d Diff) TriggersTaskwaitWorkflow() bool {
	return flips(d.before.TriggersTaskwaitWorkflow, d.after.TriggersTaskwaitWorkflow)
}
func (d Diff) TriggersDataReleaseStep() bool {
	return flips(d.before.TriggersDataReleaseStep, d.after.TriggersDataReleaseStep)
}
func (d Diff) TriggersDataLinkRead() bool {
	return flips(d.before.TriggersDataLinkRead, d.after.TriggersDataLinkRead)
}
func (d Diff) TriggersDataLinkWrite() bool {
	return flips(d.before.TriggersDataLinkWrite, d.after.TriggersDataLinkWrite)
}
func (d Diff) RemovalEdge() bool { return flips(d.before.ShouldDiscount, d.after.ShouldDiscount) }
