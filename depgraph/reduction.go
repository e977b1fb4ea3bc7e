package depgraph

import "sync"

// InMemoryReductionInfo is a reference ReductionInfo implementation
// tracking per-CPU slot occupancy without performing the arithmetic
// combination itself. It is grounded on DataAccessRegistration.cpp's
// combineTaskReductions: the final combination into original storage
// happens exactly once, guarded by a count of outstanding participants
// established at allocation time.
//
// Embedding runtimes with a real private-slot allocator are expected to
// implement ReductionInfo themselves; this type exists so the engine's own
// tests can exercise §4.7 without a hardware-backed reduction mechanism.
type InMemoryReductionInfo struct {
	mu sync.Mutex

	region       Region
	typeOp       ReductionTypeOp
	outstanding  int
	originalLive bool
	perCPU       map[int32]ReductionSlotSet
}

// NewInMemoryReductionInfo allocates a ReductionInfo for r, expecting
// participants outstanding accesses to eventually combine into it.
func NewInMemoryReductionInfo(r Region, typeOp ReductionTypeOp, participants int) *InMemoryReductionInfo {
	return &InMemoryReductionInfo{
		region:      r,
		typeOp:      typeOp,
		outstanding: participants,
		perCPU:      make(map[int32]ReductionSlotSet),
	}
}

// CombineRegion implements ReductionInfo.
func (ri *InMemoryReductionInfo) CombineRegion(r Region, slotSet ReductionSlotSet, canCombineToOriginal bool) bool {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if !canCombineToOriginal {
		return false
	}
	ri.originalLive = true
	ri.outstanding--
	return ri.outstanding == 0
}

// MakeOriginalAvailable implements ReductionInfo.
func (ri *InMemoryReductionInfo) MakeOriginalAvailable(r Region) {
	ri.mu.Lock()
	ri.originalLive = true
	ri.mu.Unlock()
}

// ReleaseSlotsInUse implements ReductionInfo.
func (ri *InMemoryReductionInfo) ReleaseSlotsInUse(cpu int32) {
	ri.mu.Lock()
	delete(ri.perCPU, cpu)
	ri.mu.Unlock()
}
