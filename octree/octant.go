package octree

// Octant is a cube of the linear octree, identified by the logical
// coordinates of its minimum corner on the uniform grid at the maximum
// refinement level, and by its refinement level. The refinement marker
// requests k-step refinement (positive) or coarsening (negative); the
// balance flag opts the octant into the 2:1 constraint.
type Octant struct {
	X, Y, Z uint32
	Lev     uint8
	Mark    int8
	Bal     bool
}

// Level returns the refinement level of the octant.
func (o *Octant) Level() int { return int(o.Lev) }

// Marker returns the refinement marker of the octant.
func (o *Octant) Marker() int { return int(o.Mark) }

// Balance reports whether the octant participates in the 2:1 constraint.
func (o *Octant) Balance() bool { return o.Bal }

// logicalSize returns the edge length of the octant on the uniform grid at
// maxLevel.
func (o *Octant) logicalSize(maxLevel uint8) uint32 {
	return uint32(1) << (maxLevel - o.Lev)
}

// morton returns the Morton key of the octant's minimum corner.
func (o *Octant) morton(dim int) uint64 {
	return encodeMorton(dim, o.X, o.Y, o.Z)
}

// lastDescendantMorton returns the Morton key of the octant's maximum
// logical cell, the largest key of any descendant.
func (o *Octant) lastDescendantMorton(dim int, maxLevel uint8) uint64 {
	s := o.logicalSize(maxLevel) - 1
	if dim == 2 {
		return encodeMorton(dim, o.X+s, o.Y+s, 0)
	}
	return encodeMorton(dim, o.X+s, o.Y+s, o.Z+s)
}

// containsLogical reports whether the logical cell (x, y, z) lies inside the
// octant.
func (o *Octant) containsLogical(x, y, z uint32, dim int, maxLevel uint8) bool {
	s := o.logicalSize(maxLevel)
	if x < o.X || x >= o.X+s || y < o.Y || y >= o.Y+s {
		return false
	}
	if dim == 3 && (z < o.Z || z >= o.Z+s) {
		return false
	}
	return true
}

// childOffset returns the logical offset of the i-th child corner in units
// of the child size; children are emitted in Morton order.
func childOffset(dim, i int) (uint32, uint32, uint32) {
	dx := uint32(i & 1)
	dy := uint32(i >> 1 & 1)
	dz := uint32(0)
	if dim == 3 {
		dz = uint32(i >> 2 & 1)
	}
	return dx, dy, dz
}

// children splits the octant one level down, in Morton order. The children
// inherit the balance flag; the caller decides their markers.
func (o *Octant) children(dim int, maxLevel uint8) []Octant {
	half := o.logicalSize(maxLevel) / 2
	kids := make([]Octant, NumChildren(dim))
	for i := range kids {
		dx, dy, dz := childOffset(dim, i)
		kids[i] = Octant{
			X:   o.X + dx*half,
			Y:   o.Y + dy*half,
			Z:   o.Z + dz*half,
			Lev: o.Lev + 1,
			Bal: o.Bal,
		}
	}
	return kids
}

// nodeLogical returns the logical coordinates of the k-th corner node.
func (o *Octant) nodeLogical(dim, k int, maxLevel uint8) (uint32, uint32, uint32) {
	s := o.logicalSize(maxLevel)
	dx, dy, dz := childOffset(dim, k)
	return o.X + dx*s, o.Y + dy*s, o.Z + dz*s
}
