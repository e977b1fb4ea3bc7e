package depgraph

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

// fakeHandle is a minimal TaskHandle for exercising the engine without a
// real worker-thread pool, the same role test doubles play against
// concurrency_manager.go's lockTableGuard interfaces in the teacher's own
// tests.
type fakeHandle struct {
	id        TaskId
	parent    TaskId
	hasParent bool
	remote    bool
	final     bool

	predecessors    int32
	blocking        int32
	removalBlocking int32
}

func newFakeHandle() *fakeHandle { return &fakeHandle{id: NewTaskId(), final: true} }

func (h *fakeHandle) ID() TaskId             { return h.id }
func (h *fakeHandle) Parent() (TaskId, bool) { return h.parent, h.hasParent }
func (h *fakeHandle) IsRemote() bool         { return h.remote }
func (h *fakeHandle) IsFinal() bool          { return h.final }

func (h *fakeHandle) IncreasePredecessors(n int) { atomic.AddInt32(&h.predecessors, int32(n)) }
func (h *fakeHandle) DecreasePredecessors(n int) bool {
	return atomic.AddInt32(&h.predecessors, -int32(n)) == 0
}
func (h *fakeHandle) IncreaseBlockingCount()        { atomic.AddInt32(&h.blocking, 1) }
func (h *fakeHandle) DecreaseBlockingCount() bool   { return atomic.AddInt32(&h.blocking, -1) == 0 }
func (h *fakeHandle) IncreaseRemovalBlockingCount() { atomic.AddInt32(&h.removalBlocking, 1) }
func (h *fakeHandle) DecreaseRemovalBlockingCount() bool {
	return atomic.AddInt32(&h.removalBlocking, -1) == 0
}

// fakeSink records every task published ready, in order.
type fakeSink struct {
	mu    sync.Mutex
	ready []TaskId
}

func (s *fakeSink) AddReadyTask(task TaskId, hint ReadyHint) {
	s.mu.Lock()
	s.ready = append(s.ready, task)
	s.mu.Unlock()
}

func (s *fakeSink) contains(id TaskId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.ready {
		if t == id {
			return true
		}
	}
	return false
}

// fakeWorkflow records every taskwait workflow setup invocation.
type fakeWorkflow struct {
	mu        sync.Mutex
	taskwaits []TaskId
}

func (w *fakeWorkflow) SetupTaskwaitWorkflow(task TaskId, taskwaitAccess *Access) {
	w.mu.Lock()
	w.taskwaits = append(w.taskwaits, task)
	w.mu.Unlock()
}

func (w *fakeWorkflow) ExecuteTask(task TaskId, place MemoryPlace) {}

func (w *fakeWorkflow) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.taskwaits)
}

func newTestEngine() (*Engine, *fakeSink, *fakeWorkflow) {
	sink := &fakeSink{}
	wf := &fakeWorkflow{}
	e := NewEngine(Config{Sink: sink, Workflow: wf})
	return e, sink, wf
}

// S1 — RAW on a single byte.
func TestScenarioRAWSingleByte(t *testing.T) {
	e, sink, _ := newTestEngine()

	// T1 and T2 are sibling tasks nested under a shared parent: the bottom
	// map that orders them lives on that parent, exactly as nested tasks
	// submitted from within the same enclosing task body share it in the
	// real runtime (a truly parentless submission has nothing above it to
	// order siblings through at all).
	parentH := newFakeHandle()
	parentTask := e.Registry().Register(parentH)

	t1 := newFakeHandle()
	t1.hasParent, t1.parent = true, parentH.ID()
	task1, err := e.SubmitTask(t1, []AccessDecl{{Kind: Write, Region: Region{Start: 100, Len: 1}}})
	if err != nil {
		t.Fatalf("submit t1: %v", err)
	}
	if !sink.contains(t1.ID()) {
		t.Fatalf("expected t1 ready immediately")
	}

	t2 := newFakeHandle()
	t2.hasParent, t2.parent = true, parentH.ID()
	task2, err := e.SubmitTask(t2, []AccessDecl{{Kind: Read, Region: Region{Start: 100, Len: 1}}})
	if err != nil {
		t.Fatalf("submit t2: %v", err)
	}
	if sink.contains(t2.ID()) {
		t.Fatalf("expected t2 pending until t1 unregisters")
	}

	e.UnregisterTaskDataAccesses(task1)
	if !sink.contains(t2.ID()) {
		t.Fatalf("expected t2 ready after t1 unregisters")
	}
	_, _ = task2, parentTask
}

// S2 — Fragmentation: a ReadWrite parent releases, and both narrower
// children become ready in the same drain.
func TestScenarioFragmentation(t *testing.T) {
	e, sink, _ := newTestEngine()

	parentH := newFakeHandle()
	parentTask := e.Registry().Register(parentH)

	t1 := newFakeHandle()
	t1.hasParent, t1.parent = true, parentH.ID()
	task1, err := e.SubmitTask(t1, []AccessDecl{{Kind: ReadWrite, Region: Region{Start: 0, Len: 64}}})
	if err != nil {
		t.Fatalf("submit t1: %v", err)
	}

	t2 := newFakeHandle()
	t2.hasParent, t2.parent = true, parentH.ID()
	task2, err := e.SubmitTask(t2, []AccessDecl{{Kind: Read, Region: Region{Start: 0, Len: 32}}})
	if err != nil {
		t.Fatalf("submit t2: %v", err)
	}
	t3 := newFakeHandle()
	t3.hasParent, t3.parent = true, parentH.ID()
	task3, err := e.SubmitTask(t3, []AccessDecl{{Kind: Write, Region: Region{Start: 32, Len: 32}}})
	if err != nil {
		t.Fatalf("submit t3: %v", err)
	}

	if sink.contains(t2.ID()) || sink.contains(t3.ID()) {
		t.Fatalf("children must not be ready before t1 unregisters")
	}

	e.UnregisterTaskDataAccesses(task1)

	if !sink.contains(t2.ID()) {
		t.Fatalf("expected t2 ready after t1 unregisters")
	}
	if !sink.contains(t3.ID()) {
		t.Fatalf("expected t3 ready after t1 unregisters")
	}
	_, _, _ = task2, task3, parentTask
}

// S3 — Reduction chain: four reduction accesses over the same region all
// become satisfied without ordering, and the last combiner frees the
// ReductionInfo. All four share a parent so they form a single reduction
// chain instead of each allocating its own independent ReductionInfo.
func TestScenarioReductionChain(t *testing.T) {
	e, sink, _ := newTestEngine()
	redTypeOp := ReductionTypeOp{Type: 1, Op: 1, Index: 0}
	region := Region{Start: 0, Len: 4}

	parentH := newFakeHandle()
	e.Registry().Register(parentH)

	var handles []*fakeHandle
	var tasks []*Task
	for i := 0; i < 4; i++ {
		h := newFakeHandle()
		h.hasParent, h.parent = true, parentH.ID()
		task, err := e.SubmitTask(h, []AccessDecl{{Kind: Reduction, Region: region, ReductionTypeOp: redTypeOp}})
		if err != nil {
			t.Fatalf("submit reduction task %d: %v", i, err)
		}
		handles = append(handles, h)
		tasks = append(tasks, task)
	}

	for i, h := range handles {
		if !sink.contains(h.ID()) {
			t.Fatalf("expected reduction task %d ready without sequential ordering", i)
		}
	}

	for _, task := range tasks {
		e.UnregisterTaskDataAccesses(task)
	}
}

// S4 — Taskwait: a child's write under a parent's taskwait fires the
// taskwait workflow exactly once.
func TestScenarioTaskwait(t *testing.T) {
	e, sink, wf := newTestEngine()

	parentH := newFakeHandle()
	parentTask := e.Registry().Register(parentH)

	childH := newFakeHandle()
	childH.hasParent = true
	childH.parent = parentH.ID()

	childTask, err := e.SubmitTask(childH, []AccessDecl{{Kind: Write, Region: Region{Start: 0, Len: 8}}})
	if err != nil {
		t.Fatalf("submit child: %v", err)
	}
	if !sink.contains(childH.ID()) {
		t.Fatalf("expected child ready immediately (missing branch, no predecessor)")
	}

	e.Taskwait(parentTask, LocalPlace)

	if wf.count() != 0 {
		t.Fatalf("taskwait workflow must not fire before the child unregisters")
	}

	e.UnregisterTaskDataAccesses(childTask)

	if wf.count() != 1 {
		t.Fatalf("expected exactly one taskwait workflow invocation, got %d", wf.count())
	}
}

// S5 — Commutative batching: three commutative accesses over the same
// region become satisfied-commutative and the scoreboard releases them
// one at a time, never concurrently.
func TestScenarioCommutativeBatching(t *testing.T) {
	e, sink, _ := newTestEngine()
	region := Region{Start: 0, Len: 8}

	var handles []*fakeHandle
	var tasks []*Task
	for i := 0; i < 3; i++ {
		h := newFakeHandle()
		task, err := e.SubmitTask(h, []AccessDecl{{Kind: Commutative, Region: region}})
		if err != nil {
			t.Fatalf("submit commutative task %d: %v", i, err)
		}
		handles = append(handles, h)
		tasks = append(tasks, task)
	}

	readyCount := 0
	for _, h := range handles {
		if sink.contains(h.ID()) {
			readyCount++
		}
	}
	if readyCount != 1 {
		t.Fatalf("expected exactly one commutative task admitted at a time, got %d", readyCount)
	}

	for _, task := range tasks {
		e.UnregisterTaskDataAccesses(task)
	}
	for i, h := range handles {
		if !sink.contains(h.ID()) {
			t.Fatalf("expected commutative task %d eventually admitted", i)
		}
	}
}

// S6 — Write-before-read: satisfiability delivered write-first, then
// read-with-location, must still converge with no deadlock.
func TestScenarioWriteBeforeRead(t *testing.T) {
	e, sink, _ := newTestEngine()
	region := Region{Start: 0, Len: 16}

	h := newFakeHandle()
	h.remote = true
	task, err := e.SubmitTask(h, []AccessDecl{{Kind: ReadWrite, Region: region}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sink.contains(h.ID()) {
		t.Fatalf("remote task must not be locally satisfied yet")
	}

	e.DeliverSatisfiability(task, region, false, true, NoPlace)
	if sink.contains(h.ID()) {
		t.Fatalf("task must not be ready after write-only satisfiability")
	}

	e.DeliverSatisfiability(task, region, true, false, LocalPlace)
	if !sink.contains(h.ID()) {
		t.Fatalf("expected task ready once both read and write satisfiability arrived")
	}
}

func TestUpgradeAccessReadToReadWrite(t *testing.T) {
	e, _, _ := newTestEngine()
	h := newFakeHandle()
	task := e.Registry().Register(h)

	region := Region{Start: 0, Len: 4}
	if err := e.RegisterTaskDataAccess(task, Read, false, region, 0, ReductionTypeOp{}); err != nil {
		t.Fatalf("register read: %v", err)
	}
	if err := e.RegisterTaskDataAccess(task, Write, false, region, 1, ReductionTypeOp{}); err != nil {
		t.Fatalf("register write: %v", err)
	}
	if task.Data.Accesses.Len() != 1 {
		t.Fatalf("expected exactly one access after upgrade, got %d", task.Data.Accesses.Len())
	}
	a, ok := task.Data.Accesses.Get(region)
	if !ok {
		t.Fatalf("expected an access over %s", region)
	}
	if a.Kind != ReadWrite {
		t.Fatalf("expected upgraded kind ReadWrite, got %s", a.Kind)
	}
}

func TestDeclarationConflictReductionVsReadWrite(t *testing.T) {
	e, _, _ := newTestEngine()
	h := newFakeHandle()
	task := e.Registry().Register(h)

	region := Region{Start: 0, Len: 4}
	if err := e.RegisterTaskDataAccess(task, Reduction, false, region, 0, ReductionTypeOp{Type: 1, Op: 1}); err != nil {
		t.Fatalf("register reduction: %v", err)
	}
	err := e.RegisterTaskDataAccess(task, Write, false, region, 1, ReductionTypeOp{})
	if err == nil {
		t.Fatalf("expected a declaration conflict registering Write over a Reduction")
	}
	var conflict *DeclarationConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a *DeclarationConflictError, got %T: %v", err, err)
	}
}
