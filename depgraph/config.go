package depgraph

import "github.com/hashicorp/go-hclog"

// Config bundles the engine's tuning knobs and collaborators, mirroring
// the teacher's concurrency.Config (NodeDesc/RangeDesc/Settings/DB/Clock/
// Stopper/knobs, with an initDefaults method).
type Config struct {
	// MaxCommutativeBytesPerTask is the per-task commutative-byte budget: a
	// task whose registered commutative bytes exceed it is admitted by the
	// scoreboard only once no other holder remains (SPEC_FULL.md §4,
	// supplementing the bare total_commutative_bytes counter the distilled
	// spec only names).
	MaxCommutativeBytesPerTask int64

	// DisableClusterOffload, when true, makes the registration pipeline
	// treat every task as non-remote, so missing-region successors are
	// always made read/write satisfied and given the directory place (spec
	// §4.5's remote-task exception).
	DisableClusterOffload bool

	// OnContentionEvent, if non-nil, is invoked whenever a task blocks on
	// another task's access; it may mutate nothing but is a useful
	// diagnostic hook, mirroring the teacher's Config.OnContentionEvent.
	OnContentionEvent func(waiter, blocker TaskId, r Region)

	Sink       ReadyTaskSink
	Scoreboard *CommutativeScoreboard
	Workflow   WorkflowSetup
	Oracle     LocationOracle
	Transport  MessageTransport
	Registry   *Registry

	Logger hclog.Logger
}

const defaultMaxCommutativeBytesPerTask = 1 << 20

func (c *Config) initDefaults() {
	if c.MaxCommutativeBytesPerTask == 0 {
		c.MaxCommutativeBytesPerTask = defaultMaxCommutativeBytesPerTask
	}
	if c.Logger == nil {
		c.Logger = hclog.NewNullLogger()
	}
	if c.Registry == nil {
		c.Registry = NewRegistry()
	}
	if c.Scoreboard == nil {
		c.Scoreboard = NewCommutativeScoreboard()
	}
}
