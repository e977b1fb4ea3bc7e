// Package region implements the byte-granular interval primitives the
// dependency engine fragments accesses over: a half-open [Start, Start+Len)
// region type, and an ordered, non-overlapping index of elements keyed by
// region that supports splitting on demand.
package region

import "fmt"

// Region is a half-open byte interval [Start, Start+Len).
type Region struct {
	Start int64
	Len   int64
}

// Of is a convenience constructor for Region{Start, End-Start}.
func Of(start, end int64) Region {
	return Region{Start: start, Len: end - start}
}

// End returns the exclusive end of the region.
func (r Region) End() int64 {
	return r.Start + r.Len
}

// Empty reports whether the region covers zero bytes.
func (r Region) Empty() bool {
	return r.Len <= 0
}

func (r Region) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// Overlaps reports whether r and o share at least one byte.
func (r Region) Overlaps(o Region) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// Contains reports whether addr falls within r.
func (r Region) Contains(addr int64) bool {
	return addr >= r.Start && addr < r.End()
}

// FullyContainedIn reports whether r is entirely covered by o.
func (r Region) FullyContainedIn(o Region) bool {
	return r.Start >= o.Start && r.End() <= o.End()
}

// Intersect returns the overlap between r and o. ok is false if they do not
// overlap, in which case the returned Region is the zero value.
func (r Region) Intersect(o Region) (out Region, ok bool) {
	if !r.Overlaps(o) {
		return Region{}, false
	}
	start := max64(r.Start, o.Start)
	end := min64(r.End(), o.End())
	return Region{Start: start, Len: end - start}, true
}

// Subtract returns the parts of r not covered by o, left-to-right. It
// returns zero, one, or two regions: zero if o fully covers r, one if o
// trims only one side (or does not overlap at all, in which case the single
// returned region is r itself), two if o is strictly interior to r.
func (r Region) Subtract(o Region) []Region {
	if !r.Overlaps(o) {
		return []Region{r}
	}
	var out []Region
	if o.Start > r.Start {
		out = append(out, Region{Start: r.Start, Len: o.Start - r.Start})
	}
	if o.End() < r.End() {
		out = append(out, Region{Start: o.End(), Len: r.End() - o.End()})
	}
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
