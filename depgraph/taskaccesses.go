package depgraph

import (
	"github.com/Omargw/nanos6-cluster/region"
)

// TaskDataAccesses is the per-task bundle of region indices, counters, and
// the single spinlock protecting all of them (spec §3). It is embedded in
// Task.
type TaskDataAccesses struct {
	mu Mutex

	Accesses          *region.Index[*Access]
	Fragments         *region.Index[*Access]
	TaskwaitFragments *region.Index[*Access]
	BottomMap         *region.Index[*BottomMapEntry]

	RemovalBlockers       int
	LiveTaskwaitFragments int
	TotalCommutativeBytes int64

	// CommutativeRegions accumulates the regions registered under
	// AccessKind Commutative, so that once this task's predecessor chain
	// clears (handleStatusChanges's dependency-release edge) the drain
	// cycle can hand them to the CommutativeScoreboard for arbitration
	// (spec §4.8; SPEC_FULL.md §4).
	CommutativeRegions []Region
}

// NewTaskDataAccesses constructs an empty set of indices for a new task.
func NewTaskDataAccesses() *TaskDataAccesses {
	return &TaskDataAccesses{
		Accesses:          region.NewIndex[*Access](),
		Fragments:         region.NewIndex[*Access](),
		TaskwaitFragments: region.NewIndex[*Access](),
		BottomMap:         region.NewIndex[*BottomMapEntry](),
	}
}

// Lock acquires the task's spinlock and returns a scoped guard.
func (t *TaskDataAccesses) Lock() *Guard {
	t.mu.Lock()
	return &Guard{tda: t}
}

// AssertLocked panics if the task's spinlock is not currently held by
// anyone, mirroring the teacher's syncutil.Mutex.AssertHeld usage at the
// top of every mutator that requires it (Testable Property 4).
func (t *TaskDataAccesses) AssertLocked() {
	t.mu.AssertHeld()
}

// indexFor resolves which region index an ObjectKind's accesses live in.
// Taskwait and top-level-sink objects share the taskwait-fragments index:
// both are synthetic, bottom-map-only accesses created at taskwait/
// unregister time rather than at registration time, and both are torn down
// through removeBottomMapTaskwaitOrTopLevelSink (spec §3, §4.6).
func (t *TaskDataAccesses) indexFor(kind ObjectKind) *region.Index[*Access] {
	switch kind {
	case ObjFragment:
		return t.Fragments
	case ObjTaskwait, ObjTopLevelSink:
		return t.TaskwaitFragments
	default:
		return t.Accesses
	}
}
