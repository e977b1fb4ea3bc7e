package depgraph

import "github.com/hashicorp/go-hclog"

// subLoggers caches the engine's Named() sub-loggers, one per subsystem,
// matching the teacher's convention of a long-lived named logger per
// component rather than ad-hoc log.With(...) calls at each call site.
type subLoggers struct {
	register hclog.Logger
	link     hclog.Logger
	update   hclog.Logger
	reduce   hclog.Logger
	commute  hclog.Logger
}

func newSubLoggers(base hclog.Logger) subLoggers {
	return subLoggers{
		register: base.Named("register"),
		link:     base.Named("link"),
		update:   base.Named("update"),
		reduce:   base.Named("reduction"),
		commute:  base.Named("commutative"),
	}
}
