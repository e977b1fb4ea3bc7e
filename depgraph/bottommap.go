package depgraph

import "github.com/Omargw/nanos6-cluster/region"

// BottomMapEntry records, for some region of the task's subtree, which
// access is currently the latest (the "bottom" of the subtree's access
// chain for that region) and what kind of chain it is part of (spec §3).
type BottomMapEntry struct {
	region                  Region
	Link                    AccessLink
	AccessTypeOfParentChain AccessKind
	ReductionTypeOp         ReductionTypeOp
}

// NewBottomMapEntry constructs an entry covering r pointing at link.
func NewBottomMapEntry(r Region, link AccessLink, parentKind AccessKind, red ReductionTypeOp) *BottomMapEntry {
	return &BottomMapEntry{region: r, Link: link, AccessTypeOfParentChain: parentKind, ReductionTypeOp: red}
}

// Span implements region.Elem.
func (e *BottomMapEntry) Span() region.Region { return e.region }

// SetSpan implements region.Elem.
func (e *BottomMapEntry) SetSpan(r region.Region) { e.region = r }

// Region returns the entry's current region.
func (e *BottomMapEntry) Region() Region { return e.region }

// Clone implements region.Elem.
func (e *BottomMapEntry) Clone() *BottomMapEntry {
	c := *e
	return &c
}
