package depgraph

import "sync"

// CommutativeScoreboard is the process-wide arbiter for strong commutative
// accesses (spec §3 Glossary, §4.8): it guarantees per-region mutual
// exclusion between commutative holders but permits any acquisition order.
// It is grounded on the teacher's lock-table wait-queue re-evaluation on
// release (HandleWriterIntentError's retry loop in
// pkg/kv/kvserver/concurrency/concurrency_manager.go), adapted from
// "transaction holds/waits for an exclusive lock" to "task holds/waits for
// mutual exclusion over a set of regions".
type CommutativeScoreboard struct {
	mu      sync.Mutex
	holders []commutativeClaim
	waiters []commutativeClaim
}

type commutativeClaim struct {
	task      TaskId
	regions   []Region
	exclusive bool
}

// NewCommutativeScoreboard constructs an empty scoreboard.
func NewCommutativeScoreboard() *CommutativeScoreboard {
	return &CommutativeScoreboard{}
}

func overlapsAny(regions []Region, claims []commutativeClaim, except TaskId) bool {
	for _, c := range claims {
		if c.task == except {
			continue
		}
		for _, r := range regions {
			for _, cr := range c.regions {
				if r.Overlaps(cr) {
					return true
				}
			}
		}
	}
	return false
}

// AddAndEvaluateTask records task's commutative regions. It returns true
// iff none of them currently overlap a live holder, in which case task
// itself becomes a holder; otherwise task is queued as a waiter and the
// caller must wait for a future release to promote it.
//
// exclusive forces task to wait for every other holder to release first,
// regardless of region overlap, once its declared commutative bytes exceed
// Config.MaxCommutativeBytesPerTask (SPEC_FULL.md §4's commutative byte
// accounting): a task that claims an unusually large commutative footprint
// is serialized against the rest of the scoreboard rather than being
// allowed to batch arbitrarily many other holders' regions at once.
func (cs *CommutativeScoreboard) AddAndEvaluateTask(task TaskId, regions []Region, exclusive bool) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	claim := commutativeClaim{task: task, regions: regions, exclusive: exclusive}
	if exclusive && len(cs.holders) > 0 {
		cs.waiters = append(cs.waiters, claim)
		return false
	}
	if overlapsAny(regions, cs.holders, task) {
		cs.waiters = append(cs.waiters, claim)
		return false
	}
	cs.holders = append(cs.holders, claim)
	return true
}

// ProcessReleasedCommutativeRegions removes task's claim and promotes any
// waiters whose regions no longer overlap a remaining holder (or an
// earlier-queued, now-promoted waiter — promotion happens in FIFO waiter
// order so two waiters for disjoint regions both get promoted in one
// pass). Newly-promoted tasks are appended to out.SatisfiedOriginators.
func (cs *CommutativeScoreboard) ProcessReleasedCommutativeRegions(task TaskId, out *CPUDependencyData) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	filtered := cs.holders[:0]
	for _, h := range cs.holders {
		if h.task != task {
			filtered = append(filtered, h)
		}
	}
	cs.holders = filtered

	var stillWaiting []commutativeClaim
	for _, w := range cs.waiters {
		blocked := len(cs.holders) > 0 && w.exclusive
		if !blocked {
			blocked = overlapsAny(w.regions, cs.holders, w.task)
		}
		if blocked {
			stillWaiting = append(stillWaiting, w)
			continue
		}
		// w is promoted straight to holder here, not merely marked eligible:
		// it goes directly to SatisfiedOriginators (the ready-sink queue)
		// rather than SatisfiedCommutativeOriginators, which runDrainCycle
		// feeds through AddAndEvaluateTask — calling that for an already-
		// promoted holder would re-register (and re-append to cs.holders)
		// the same claim a second time.
		cs.holders = append(cs.holders, w)
		out.SatisfiedOriginators = append(out.SatisfiedOriginators, w.task)
	}
	cs.waiters = stillWaiting
}
