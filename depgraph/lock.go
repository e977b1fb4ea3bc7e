package depgraph

import "sync"

// Mutex is a mutual exclusion lock with a debug-only held assertion,
// grounded on the teacher's pkg/util/syncutil.Mutex: the teacher itself
// does not reach for a third-party mutex replacement either, it just wraps
// sync.Mutex and layers an AssertHeld convention on top, since no ecosystem
// library improves on the standard library's mutex for this. This repo
// does the same rather than hand-rolling something fancier.
type Mutex struct {
	mu   sync.Mutex
	held int32
}

// Lock acquires the mutex.
func (m *Mutex) Lock() {
	m.mu.Lock()
	m.held = 1
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	m.held = 0
	m.mu.Unlock()
}

// AssertHeld panics if the mutex is not currently locked by some goroutine.
// As in the teacher, this does not verify which goroutine holds it, only
// that it is held by someone; real exclusivity is the runtime's job.
func (m *Mutex) AssertHeld() {
	if m.held == 0 {
		panic("depgraph: mutex not held")
	}
}

// Guard is the scoped "lock held" token returned by TaskDataAccesses.Lock;
// the holder releases the lock through it. No mutator in this package takes
// a *Guard parameter: the lock discipline is checked at run time instead,
// by handleStatusChanges calling TaskDataAccesses.AssertLocked.
type Guard struct {
	tda *TaskDataAccesses
}

// Unlock releases the guard's lock. Calling Unlock twice panics.
func (g *Guard) Unlock() {
	if g.tda == nil {
		panic("depgraph: double unlock of Guard")
	}
	tda := g.tda
	g.tda = nil
	tda.mu.Unlock()
}
