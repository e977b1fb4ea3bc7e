package depgraph

import "context"

// ReadyHint tells the ready-task sink why a task just became ready, so it
// can pick a good place hint the way the teacher's scheduler uses latch/
// lock-release context to prefer a busy compute place or a sibling.
type ReadyHint uint8

const (
	HintSibling ReadyHint = iota
	HintBusyComputePlace
	HintUnblocked
)

// ReadyTaskSink publishes tasks the engine has determined are ready to run.
// The engine never runs or enqueues a task itself; it only announces
// readiness (spec §1, §6 — "Out of scope: worker thread pool... the engine
// publishes 'task is ready' through an opaque ready-task sink").
type ReadyTaskSink interface {
	AddReadyTask(task TaskId, hint ReadyHint)
}

// TaskHandle is the engine's view of a task's lifecycle counters and
// identity, owned by the embedding runtime (spec §6).
type TaskHandle interface {
	ID() TaskId
	Parent() (TaskId, bool)
	IsRemote() bool
	IsFinal() bool

	IncreasePredecessors(n int)
	// DecreasePredecessors reports whether the count reached zero.
	DecreasePredecessors(n int) bool

	IncreaseBlockingCount()
	// DecreaseBlockingCount reports whether the count reached zero.
	DecreaseBlockingCount() bool

	IncreaseRemovalBlockingCount()
	// DecreaseRemovalBlockingCount reports whether the count reached zero.
	DecreaseRemovalBlockingCount() bool
}

// DataLinkStep emits a cross-node satisfiability update for a region once
// both its read and write satisfiability have possibly changed (spec §4.3,
// §6). Implementations typically forward into MessageTransport.
type DataLinkStep interface {
	LinkRegion(r Region, loc MemoryPlace, readChanged, writeChanged bool)
}

// DataReleaseStep finalizes a region's data once all outstanding accesses
// against it have released it (spec §4.3, §6).
type DataReleaseStep interface {
	CheckDataRelease(a *Access) bool
	ReleaseRegion(r Region, loc MemoryPlace)
}

// SatInfo is the wire payload of a cross-node satisfiability message (spec
// §6): LocationIndex == -1 encodes "no location yet", supporting
// write-before-read delivery order.
type SatInfo struct {
	Region        Region
	LocationIndex int32
	Read          bool
	Write         bool
}

// NoLocationIndex is the wire sentinel for "no location yet".
const NoLocationIndex int32 = -1

// ReleaseInfo is the wire payload of a cross-node release message (spec §6).
type ReleaseInfo struct {
	RemoteTaskID  TaskId
	Region        Region
	Kind          AccessKind
	Weak          bool
	LocationIndex int32
}

// MessageTransport is the cluster transport collaborator: its receive-side
// callbacks drive PropagateSatisfiability / ReleaseAccessRegion (spec
// §4.10, §6). Config carries one, but the engine itself does not send
// satisfiability or release messages through it.
type MessageTransport interface {
	SendSatisfiability(ctx context.Context, task TaskId, targetNode int32, info SatInfo)
	SendReleaseAccess(ctx context.Context, info ReleaseInfo)
}

// WorkflowSetup receives fully satisfied taskwait accesses: the drain cycle
// calls SetupTaskwaitWorkflow once per triggered taskwait (spec §4.6).
// ExecuteTask is part of the collaborator's surface but is not called by
// this package.
type WorkflowSetup interface {
	SetupTaskwaitWorkflow(task TaskId, taskwaitAccess *Access)
	ExecuteTask(task TaskId, place MemoryPlace)
}

// LocationOracle resolves the directory-owned place for a region that has
// no predecessor (spec §4.5's "missing" branch; supplemented per
// SPEC_FULL.md §4.3, grounded on the original's DirectoryCache lookup).
type LocationOracle interface {
	DirectoryPlaceFor(r Region) MemoryPlace
}
