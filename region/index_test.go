package region

import "testing"

type testElem struct {
	span   Region
	tag    string
	splits int
}

func (e *testElem) Span() Region     { return e.span }
func (e *testElem) SetSpan(r Region) { e.span = r }
func (e *testElem) Clone() *testElem {
	c := *e
	c.splits++
	return &c
}

func TestProcessIntersectingSplits(t *testing.T) {
	ix := NewIndex[*testElem]()
	ix.Insert(&testElem{span: Of(0, 64), tag: "a"})

	var visited []Region
	ix.ProcessIntersecting(Of(16, 32), func(e *testElem) *testElem {
		visited = append(visited, e.Span())
		return e
	})
	if len(visited) != 1 || visited[0] != Of(16, 32) {
		t.Fatalf("expected single visit over [16,32), got %v", visited)
	}
	if ix.Len() != 3 {
		t.Fatalf("expected 3 fragments after split, got %d", ix.Len())
	}
}

func TestProcessIntersectingAndMissing(t *testing.T) {
	ix := NewIndex[*testElem]()
	ix.Insert(&testElem{span: Of(0, 8), tag: "a"})
	ix.Insert(&testElem{span: Of(16, 24), tag: "b"})

	var hits, holes []Region
	ix.ProcessIntersectingAndMissing(Of(0, 32),
		func(e *testElem) *testElem { hits = append(hits, e.Span()); return e },
		func(r Region) { holes = append(holes, r) },
	)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %v", hits)
	}
	if len(holes) != 2 || holes[0] != Of(8, 16) || holes[1] != Of(24, 32) {
		t.Fatalf("unexpected holes: %v", holes)
	}
}

func TestFragmentByIntersection(t *testing.T) {
	ix := NewIndex[*testElem]()
	ix.Insert(&testElem{span: Of(0, 64), tag: "parent"})

	var posted []Region
	ix.FragmentByIntersection(Of(0, 32), false,
		func(parent *testElem, sub Region) *testElem {
			c := parent.Clone()
			c.span = sub
			return c
		},
		func(newElem, parent *testElem) {
			posted = append(posted, newElem.Span())
		},
	)
	if ix.Len() != 2 {
		t.Fatalf("expected 2 fragments, got %d", ix.Len())
	}
	if len(posted) != 1 || posted[0] != Of(0, 32) {
		t.Fatalf("unexpected post callback regions: %v", posted)
	}
}

func TestRegionSubtractAndIntersect(t *testing.T) {
	r := Of(0, 64)
	mid := Of(16, 32)
	if got, ok := r.Intersect(mid); !ok || got != mid {
		t.Fatalf("intersect mismatch: %v %v", got, ok)
	}
	parts := r.Subtract(mid)
	if len(parts) != 2 || parts[0] != Of(0, 16) || parts[1] != Of(32, 64) {
		t.Fatalf("unexpected subtract result: %v", parts)
	}
}
