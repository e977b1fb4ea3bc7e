package depgraph

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Task pairs the embedding runtime's TaskHandle with the engine's own
// per-task access bookkeeping. It is what AccessLink resolves to via the
// Registry (spec §9: "never store raw owning pointers across task
// boundaries").
type Task struct {
	Handle TaskHandle
	Data   *TaskDataAccesses
}

// Registry resolves TaskId to *Task. It is the indirection layer spec §9
// requires so that cross-task edges are tagged references, not pointers:
// AccessLink names a (TaskId, ObjectKind) pair, and callers dereference it
// through a Registry lookup at the moment they need to act on it, never
// earlier.
type Registry struct {
	mu    sync.RWMutex
	tasks map[TaskId]*Task
}

// NewRegistry constructs an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[TaskId]*Task)}
}

// Register adds a task, allocating its TaskDataAccesses.
func (r *Registry) Register(h TaskHandle) *Task {
	t := &Task{Handle: h, Data: NewTaskDataAccesses()}
	r.mu.Lock()
	r.tasks[h.ID()] = t
	r.mu.Unlock()
	return t
}

// Lookup resolves a TaskId to its Task, or false if it is unknown (already
// disposed, or never registered).
func (r *Registry) Lookup(id TaskId) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	return t, ok
}

// MustLookup resolves id or panics via an assertion-failure error, for call
// sites where an unresolved AccessLink is an internal invariant violation
// rather than an expected outcome (spec §7).
func (r *Registry) MustLookup(id TaskId) *Task {
	t, ok := r.Lookup(id)
	if !ok {
		panic(errors.AssertionFailedf("depgraph: unresolved task id %s", id))
	}
	return t
}

// Forget removes a task from the registry once it has been disposed (spec
// §2's "dispose removable tasks").
func (r *Registry) Forget(id TaskId) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}
