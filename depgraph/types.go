// Package depgraph implements the data-dependency engine of a task-parallel
// runtime: it accepts region-based access declarations at task submission,
// maintains a dynamic happens-before graph over byte-granular regions, and
// drives tasks to the ready state in the order the declared accesses
// require. See SPEC_FULL.md for the full component breakdown; this package
// corresponds to the root "engine" package in that breakdown.
package depgraph

import (
	"github.com/google/uuid"

	"github.com/Omargw/nanos6-cluster/region"
)

// TaskId opaquely identifies a task across the engine, including across
// cluster nodes. It is a UUID for the same reason roachpb.TransactionID is a
// UUID in the teacher: it must be generated without coordination and stay
// stable on the wire.
type TaskId uuid.UUID

// NewTaskId generates a fresh task identity.
func NewTaskId() TaskId { return TaskId(uuid.New()) }

func (t TaskId) String() string { return uuid.UUID(t).String() }

// Region re-exports the byte-interval type the engine fragments accesses
// over, so callers of this package do not need to import region directly
// for common cases.
type Region = region.Region

// AccessKind is the declared nature of a task's use of a region.
type AccessKind uint8

const (
	None AccessKind = iota
	Read
	Write
	ReadWrite
	Concurrent
	Commutative
	Reduction
)

func (k AccessKind) String() string {
	switch k {
	case None:
		return "None"
	case Read:
		return "Read"
	case Write:
		return "Write"
	case ReadWrite:
		return "ReadWrite"
	case Concurrent:
		return "Concurrent"
	case Commutative:
		return "Commutative"
	case Reduction:
		return "Reduction"
	default:
		return "Unknown"
	}
}

// ObjectKind distinguishes the four flavors of status-bearing record the
// engine manages, collapsed into a single struct per spec §9 to keep the
// status-effects calculator branch-on-a-tag rather than dynamically
// dispatched.
type ObjectKind uint8

const (
	ObjAccess ObjectKind = iota
	ObjFragment
	ObjTaskwait
	ObjTopLevelSink
)

func (k ObjectKind) String() string {
	switch k {
	case ObjAccess:
		return "Access"
	case ObjFragment:
		return "Fragment"
	case ObjTaskwait:
		return "Taskwait"
	case ObjTopLevelSink:
		return "TopLevelSink"
	default:
		return "Unknown"
	}
}

// AccessLink is a tagged cross-task reference: it names a task and which of
// that task's object kinds is the target, never a raw pointer, per spec §9
// ("implement all edges as (task_id, object_kind) tagged references").
// Because a task may have at most one live bottom-map successor access per
// region, (TaskId, ObjectKind) plus the region being propagated is enough to
// resolve the concrete *Access at apply time.
type AccessLink struct {
	Task TaskId
	Kind ObjectKind
}

// MemoryPlace names where a region's data currently resides. It is opaque to
// the engine beyond equality and the NodeID used for remote/local checks;
// ownership and transport belong to the collaborators in interfaces.go.
type MemoryPlace struct {
	NodeID int32
	valid  bool
}

// LocalPlace is a stand-in for "the local node's directory-owned place",
// used when the registration pipeline synthesizes a locally-satisfied
// successor for a missing region (spec §4.5, "missing" branch).
var LocalPlace = MemoryPlace{NodeID: 0, valid: true}

// NoPlace represents "no location yet" (wire encoding -1, spec §6).
var NoPlace = MemoryPlace{}

// Valid reports whether a location has actually been assigned.
func (p MemoryPlace) Valid() bool { return p.valid }

// ReductionTypeOp identifies a reduction's element type and combining
// operator, plus the clause index it was declared under. Two reduction
// accesses only combine if these match exactly (spec §4.5, upgrade rules).
type ReductionTypeOp struct {
	Type  int32
	Op    int32
	Index int32
}
