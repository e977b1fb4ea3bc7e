package region

import (
	"github.com/google/btree"
)

// Elem is the contract an Index element type must satisfy. It mirrors the
// node-splitting discipline of the teacher's pkg/util/interval B-tree
// (btree_based_interval.go): an element knows its own span and can be split
// into a fresh copy over a sub-span when process_intersecting reports a
// query region that only partially overlaps it.
type Elem[E any] interface {
	// Span returns the element's current region.
	Span() Region
	// SetSpan narrows or otherwise changes the element's stored region. It
	// is only ever called with a sub-region of the element's current span.
	SetSpan(Region)
	// Clone returns an independent copy of the element (same dynamic type,
	// same field values) that can subsequently have SetSpan called on it
	// without affecting the receiver.
	Clone() E
}

const degree = 32 // matches interval.DefaultBTreeMinimumDegree

// Index is an ordered container of non-overlapping, region-keyed elements.
// The thirty-two minimum-degree choice matches the teacher's
// DefaultBTreeMinimumDegree; google/btree.BTreeG fills the role the
// teacher's hand-rolled interval B-tree plays in pkg/util/interval.
type Index[E Elem[E]] struct {
	tree *btree.BTreeG[E]
	n    int
}

// NewIndex constructs an empty Index.
func NewIndex[E Elem[E]]() *Index[E] {
	return &Index[E]{
		tree: btree.NewG[E](degree, func(a, b E) bool {
			as, bs := a.Span(), b.Span()
			if as.Start != bs.Start {
				return as.Start < bs.Start
			}
			return as.End() < bs.End()
		}),
	}
}

// Len returns the number of elements currently stored.
func (ix *Index[E]) Len() int { return ix.n }

// Insert adds v, keyed by v.Span(). The caller must ensure v's span does not
// overlap any element already present.
func (ix *Index[E]) Insert(v E) {
	ix.tree.ReplaceOrInsert(v)
	ix.n++
}

// DeleteElem removes v's own entry (byte-identical span to the one used at
// insertion time).
func (ix *Index[E]) DeleteElem(v E) bool {
	_, found := ix.tree.Delete(v)
	if found {
		ix.n--
	}
	return found
}

// ForEach visits every stored element in ascending span order.
func (ix *Index[E]) ForEach(f func(E) bool) {
	ix.tree.Ascend(func(v E) bool {
		return f(v)
	})
}

// overlapping collects the elements currently intersecting r. It snapshots
// before mutating since btree iteration order is undefined once the tree is
// mutated mid-walk.
func (ix *Index[E]) overlapping(r Region) []E {
	var out []E
	ix.tree.Ascend(func(v E) bool {
		s := v.Span()
		if s.Start >= r.End() {
			return false
		}
		if s.Overlaps(r) {
			out = append(out, v)
		}
		return true
	})
	return out
}

// splitToFit ensures the stored element covering v's span has no bytes
// outside r by splitting off the non-overlapping remainder(s) as separate
// stored elements (clones of v), and returns the (possibly new) element
// whose span is exactly v.Span().Intersect(r). It is the mechanism behind
// "f is called after a split with the sub-element fully contained in r".
func (ix *Index[E]) splitToFit(v E, r Region) E {
	span := v.Span()
	if span.FullyContainedIn(r) {
		return v
	}
	mid, ok := span.Intersect(r)
	if !ok {
		return v
	}
	remainders := span.Subtract(mid)
	ix.DeleteElem(v)
	switch len(remainders) {
	case 0:
		v.SetSpan(mid)
		ix.Insert(v)
		return v
	case 1:
		v.SetSpan(remainders[0])
		ix.Insert(v)
		middle := v.Clone()
		middle.SetSpan(mid)
		ix.Insert(middle)
		return middle
	default: // 2
		left := v
		left.SetSpan(remainders[0])
		ix.Insert(left)
		right := v.Clone()
		right.SetSpan(remainders[1])
		ix.Insert(right)
		middle := v.Clone()
		middle.SetSpan(mid)
		ix.Insert(middle)
		return middle
	}
}

// ProcessIntersecting iterates over the elements intersecting r. Any element
// only partially overlapping r is split first (via splitToFit) so that visit
// always observes a sub-element fully contained in r, per spec §4.1. visit
// may mutate the element in place; if it returns a value with a different
// span, the index re-keys it.
func (ix *Index[E]) ProcessIntersecting(r Region, visit func(E) E) {
	for _, v := range ix.overlapping(r) {
		// v may have been consumed by an earlier split in this same loop
		// (e.g. two adjacent originally-distinct overlapping elements that
		// a prior iteration's split touched); re-resolve by span lookup is
		// unnecessary here because splitToFit only ever shrinks/replaces the
		// element it is given, never a sibling, so v is still the element to
		// operate on unless it was already fully inside r.
		fitted := ix.splitToFit(v, r)
		before := fitted.Span()
		after := visit(fitted)
		if after.Span() != before {
			ix.DeleteElem(fitted)
			ix.Insert(after)
		}
	}
}

// ProcessIntersectingAndMissing behaves like ProcessIntersecting but also
// reports, via missing, every sub-region of r not covered by any stored
// element.
func (ix *Index[E]) ProcessIntersectingAndMissing(r Region, visit func(E) E, missing func(Region)) {
	cursor := r.Start
	for _, v := range ix.overlapping(r) {
		s := v.Span()
		if s.Start > cursor {
			missing(Region{Start: cursor, Len: s.Start - cursor})
		}
		fitted := ix.splitToFit(v, r)
		before := fitted.Span()
		after := visit(fitted)
		if after.Span() != before {
			ix.DeleteElem(fitted)
			ix.Insert(after)
		}
		if s.End() > cursor {
			cursor = s.End()
		}
	}
	if cursor < r.End() {
		missing(Region{Start: cursor, Len: r.End() - cursor})
	}
}

// FragmentByIntersection splits the single stored element that fully covers
// r into up to three parts: the part(s) of its span outside r (each
// produced by dup and reinserted) and the part equal to r, produced by dup and passed to post alongside the original
// element for state propagation. If removeIntersection is true the middle
// part is dropped rather than reinserted (used when finalizing/unregistering
// carves a hole without keeping a fragment over it).
//
// It is a precondition that exactly one stored element's span fully
// contains r; this matches the registration pipeline's use (projecting a
// parent access's existing span onto a newly touched child region).
func (ix *Index[E]) FragmentByIntersection(
	r Region,
	removeIntersection bool,
	dup func(parent E, sub Region) E,
	post func(newElem E, parent E),
) {
	matches := ix.overlapping(r)
	for _, parent := range matches {
		span := parent.Span()
		if !r.FullyContainedIn(span) {
			continue
		}
		mid, ok := span.Intersect(r)
		if !ok {
			continue
		}
		remainders := span.Subtract(mid)
		ix.DeleteElem(parent)
		switch len(remainders) {
		case 0:
			// r covers the whole element; nothing to keep on the sides.
		case 1:
			side := dup(parent, remainders[0])
			ix.Insert(side)
		default:
			left := dup(parent, remainders[0])
			right := dup(parent, remainders[1])
			ix.Insert(left)
			ix.Insert(right)
		}
		if !removeIntersection {
			middle := dup(parent, mid)
			ix.Insert(middle)
			post(middle, parent)
		} else {
			post(parent, parent)
		}
		return
	}
}

// Containing returns the stored element whose span fully contains r, if
// any, without splitting or otherwise mutating it. Elements are stored in
// non-overlapping, Start-ascending order, so at most one element can
// contain r; scanning stops as soon as a later element's Start has moved
// past r.Start, since no such element could contain r either. This is the
// non-destructive counterpart to ProcessIntersecting, used when a caller
// needs to inspect or clone a covering element in place (e.g. to create an
// initial fragment) rather than narrow the element itself down to r.
func (ix *Index[E]) Containing(r Region) (found E, ok bool) {
	ix.tree.Ascend(func(v E) bool {
		s := v.Span()
		if s.Start > r.Start {
			return false
		}
		if r.FullyContainedIn(s) {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// Get returns the stored element whose span exactly equals r, if any. This
// is a thin exact-match lookup, distinct from ProcessIntersecting's
// intersection semantics.
func (ix *Index[E]) Get(r Region) (found E, ok bool) {
	ix.tree.Ascend(func(v E) bool {
		s := v.Span()
		if s.Start == r.Start && s.Len == r.Len {
			found, ok = v, true
			return false
		}
		return s.Start < r.End()
	})
	return found, ok
}
