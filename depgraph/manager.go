package depgraph

import "github.com/hashicorp/go-hclog"

// Engine is the façade over the whole dependency graph, analogous to the
// teacher's managerImpl: it owns no worker threads and runs no tasks
// itself, it only wires the registration pipeline, update engine,
// commutative scoreboard, and the collaborator interfaces together (spec
// §1, §6).
type Engine struct {
	cfg  Config
	log  hclog.Logger
	subs subLoggers
}

// NewEngine constructs an Engine from cfg, filling in defaults the way
// concurrency.NewManager does via Config.initDefaults.
func NewEngine(cfg Config) *Engine {
	cfg.initDefaults()
	return &Engine{cfg: cfg, log: cfg.Logger, subs: newSubLoggers(cfg.Logger)}
}

// Registry exposes the task registry so callers can register/forget tasks.
func (e *Engine) Registry() *Registry { return e.cfg.Registry }

// newCPUDependencyData allocates a fresh per-call deferred-operation queue,
// the Go analogue of the teacher's per-worker-thread CPUDependencyData
// (spec §5: "per-call-site, thread-local for the duration of one engine
// entry point").
func (e *Engine) newCPUDependencyData() *CPUDependencyData {
	return &CPUDependencyData{}
}

// AccessDecl is one clause of a task's dependency declaration, the input
// shape SubmitTask's caller assembles from user-facing pragma/clause
// parsing (out of scope for this package; spec §1's "accepts dependency
// declarations at task submission").
type AccessDecl struct {
	Kind            AccessKind
	Weak            bool
	Region          Region
	SymbolIndex     int32
	ReductionTypeOp ReductionTypeOp
}

// SubmitTask runs the full submission pipeline spec §2 describes:
// register_task_data_access × N, link_task_accesses, then a drain cycle
// that may publish the task itself (or siblings it freed) ready. A
// declaration conflict aborts before linking and leaves the task
// unregistered in the bottom map, but it remains resolvable through the
// Registry so the caller can decide how to report the failure.
func (e *Engine) SubmitTask(handle TaskHandle, decls []AccessDecl) (*Task, error) {
	task := e.cfg.Registry.Register(handle)

	for _, d := range decls {
		if err := e.RegisterTaskDataAccess(task, d.Kind, d.Weak, d.Region, d.SymbolIndex, d.ReductionTypeOp); err != nil {
			return task, err
		}
	}

	out := e.newCPUDependencyData()
	out.claim()
	defer out.release()

	e.LinkTaskAccesses(task, out)
	e.runDrainCycle(out)
	return task, nil
}

// Taskwait runs CreateTaskwait followed by a drain cycle (spec §4.6).
func (e *Engine) Taskwait(task *Task, place MemoryPlace) {
	out := e.newCPUDependencyData()
	out.claim()
	defer out.release()

	e.CreateTaskwait(task, place, out)
	e.runDrainCycle(out)
}

// UnregisterTaskDataAccesses runs create_top_level_sink followed by a
// drain cycle (spec §2's completion control flow: "unregister_task_data_
// accesses -> create top-level sink -> finalize accesses -> drain ->
// dispose removable tasks").
func (e *Engine) UnregisterTaskDataAccesses(task *Task) {
	out := e.newCPUDependencyData()
	out.claim()
	defer out.release()

	e.CreateTopLevelSink(task, out)
	e.finalizeAllAccesses(task, out)
	e.runDrainCycle(out)
}

// Release runs ReleaseAccessRegion followed by a drain cycle (spec §4.9).
func (e *Engine) Release(task *Task, region Region, weak bool, location MemoryPlace) {
	out := e.newCPUDependencyData()
	out.claim()
	defer out.release()

	e.ReleaseAccessRegion(task, region, weak, location, out)
	e.runDrainCycle(out)
}

// DeliverSatisfiability runs PropagateSatisfiability followed by a drain
// cycle (spec §4.10); the entry point a MessageTransport's receive-side
// callback invokes.
func (e *Engine) DeliverSatisfiability(task *Task, region Region, read, write bool, location MemoryPlace) {
	out := e.newCPUDependencyData()
	out.claim()
	defer out.release()

	e.PropagateSatisfiability(task, region, read, write, location, out)
	e.runDrainCycle(out)
}
