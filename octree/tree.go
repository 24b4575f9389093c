package octree

import (
	"math"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultTolerance is the default tolerance of point-location queries.
const DefaultTolerance = 1e-10

// Operation identifies the last collective operation applied to the tree.
type Operation int

// Tree operations, tracked so that a mesh synchroniser can tell whether the
// last adaption produced a mapping table.
const (
	OpInitialization Operation = iota
	OpAdaptionMapped
	OpAdaptionUnmapped
	OpLoadBalance
)

// Tree is a linear octree over a cubic domain. The local portion of the tree
// is two Morton-sorted octant arrays, internal and ghost; the union of the
// internal arrays across ranks tiles the root cube without overlap, each
// rank owning a contiguous Morton range.
type Tree struct {
	dim      int
	maxLevel uint8
	origin   r3.Vector
	length   float64
	tol      float64
	logger   golog.Logger
	comm     Communicator

	octants []Octant
	ghosts  []Octant

	// partitionLast[r] is the largest Morton key owned by rank r;
	// counts[r] is the number of internal octants of rank r.
	partitionLast []uint64
	counts        []uint64

	lastOp     Operation
	mapping    *Mapping
	sentRanges map[int][4]uint32
}

// NewTree builds a tree over the cube of the given origin and edge length.
// The root octant starts on rank 0; other ranks receive octants through
// LoadBalance.
func NewTree(dim int, origin r3.Vector, length float64, maxLevel int, logger golog.Logger, comm Communicator) (*Tree, error) {
	if dim != 2 && dim != 3 {
		return nil, errors.Errorf("invalid dimension %d", dim)
	}
	if length <= 0 {
		return nil, errors.Errorf("invalid domain length %g", length)
	}
	if maxLevel <= 0 || maxLevel > 21 {
		return nil, errors.Errorf("invalid maximum level %d", maxLevel)
	}
	if comm == nil {
		comm = NewSerialCommunicator()
	}

	t := &Tree{
		dim:      dim,
		maxLevel: uint8(maxLevel),
		origin:   origin,
		length:   length,
		tol:      DefaultTolerance,
		logger:   logger,
		comm:     comm,
		lastOp:   OpInitialization,
	}

	size := comm.Size()
	t.partitionLast = make([]uint64, size)
	t.counts = make([]uint64, size)
	last := t.maxMorton()
	for r := range t.partitionLast {
		t.partitionLast[r] = last
	}
	if comm.Rank() == 0 {
		t.octants = []Octant{{Bal: true}}
		t.counts[0] = 1
	}

	logger.Debugf("initialized %d-dimensional octree, max level %d", dim, maxLevel)
	return t, nil
}

// maxMorton returns the largest Morton key of the uniform grid at maxLevel.
func (t *Tree) maxMorton() uint64 {
	root := Octant{}
	return root.lastDescendantMorton(t.dim, t.maxLevel)
}

func (t *Tree) maxLength() uint32 {
	return uint32(1) << t.maxLevel
}

// Dimension returns the dimension of the tree, 2 or 3.
func (t *Tree) Dimension() int { return t.dim }

// MaxLevel returns the maximum allowed refinement level.
func (t *Tree) MaxLevel() int { return int(t.maxLevel) }

// Origin returns the minimum corner of the root cube.
func (t *Tree) Origin() r3.Vector { return t.origin }

// SetOrigin moves the root cube.
func (t *Tree) SetOrigin(origin r3.Vector) { t.origin = origin }

// Length returns the edge length of the root cube.
func (t *Tree) Length() float64 { return t.length }

// SetLength rescales the root cube.
func (t *Tree) SetLength(length float64) { t.length = length }

// SetTol sets the tolerance of point-location queries.
func (t *Tree) SetTol(tol float64) { t.tol = tol }

// ResetTol restores the default point-location tolerance.
func (t *Tree) ResetTol() { t.tol = DefaultTolerance }

// Tol returns the tolerance of point-location queries.
func (t *Tree) Tol() float64 { return t.tol }

// Rank returns the local rank.
func (t *Tree) Rank() int { return t.comm.Rank() }

// NumOctants returns the number of internal octants of the local rank.
func (t *Tree) NumOctants() int { return len(t.octants) }

// NumGhosts returns the number of ghost octants of the local rank.
func (t *Tree) NumGhosts() int { return len(t.ghosts) }

// Octant returns the internal octant with the given tree-local index.
func (t *Tree) Octant(idx uint32) *Octant { return &t.octants[idx] }

// GhostOctant returns the ghost octant with the given tree-local index.
func (t *Tree) GhostOctant(idx uint32) *Octant { return &t.ghosts[idx] }

// LastOperation returns the last collective operation applied to the tree.
func (t *Tree) LastOperation() Operation { return t.lastOp }

// SetMarker requests k-step refinement (positive) or coarsening (negative)
// of the internal octant with the given index. The marker is clamped so the
// octant can neither leave [0, MaxLevel] nor coarsen past the root.
func (t *Tree) SetMarker(idx uint32, marker int) {
	o := &t.octants[idx]
	lo := -int(o.Lev)
	hi := int(t.maxLevel) - int(o.Lev)
	if marker < lo {
		marker = lo
	}
	if marker > hi {
		marker = hi
	}
	o.Mark = int8(marker)
}

// Marker returns the refinement marker of the internal octant with the given
// index.
func (t *Tree) Marker(idx uint32) int { return int(t.octants[idx].Mark) }

// SetBalance opts the internal octant with the given index in or out of the
// 2:1 constraint.
func (t *Tree) SetBalance(idx uint32, enabled bool) {
	t.octants[idx].Bal = enabled
}

// GetLevel returns the refinement level of an octant.
func (t *Tree) GetLevel(o *Octant) int { return int(o.Lev) }

// GetMorton returns the Morton key of an octant's minimum corner.
func (t *Tree) GetMorton(o *Octant) uint64 { return o.morton(t.dim) }

// sizeOf converts a logical size to physical units.
func (t *Tree) sizeOf(o *Octant) float64 {
	return t.length / math.Pow(2, float64(o.Lev))
}

// GetSize returns the physical edge length of an octant.
func (t *Tree) GetSize(o *Octant) float64 { return t.sizeOf(o) }

// toPhysical converts logical coordinates to physical space.
func (t *Tree) toPhysical(x, y, z uint32) r3.Vector {
	h := t.length / float64(t.maxLength())
	p := r3.Vector{
		X: t.origin.X + float64(x)*h,
		Y: t.origin.Y + float64(y)*h,
	}
	if t.dim == 3 {
		p.Z = t.origin.Z + float64(z)*h
	} else {
		p.Z = t.origin.Z
	}
	return p
}

// GetCenter returns the physical center of an octant.
func (t *Tree) GetCenter(o *Octant) r3.Vector {
	half := t.sizeOf(o) / 2
	c := t.toPhysical(o.X, o.Y, o.Z)
	c.X += half
	c.Y += half
	if t.dim == 3 {
		c.Z += half
	}
	return c
}

// GetNode returns the physical coordinates of the k-th corner node of an
// octant.
func (t *Tree) GetNode(o *Octant, k int) r3.Vector {
	x, y, z := o.nodeLogical(t.dim, k, t.maxLevel)
	return t.toPhysical(x, y, z)
}

// GetNodeMorton returns the Morton key of the k-th corner node of an octant
// in the global uniform grid at MaxLevel. This key is canonical: corners of
// different octants coincide geometrically exactly when their keys match.
func (t *Tree) GetNodeMorton(o *Octant, k int) uint64 {
	x, y, z := o.nodeLogical(t.dim, k, t.maxLevel)
	return encodeMorton(t.dim, x, y, z)
}

// GetFaceCenter returns the physical center of an octant face.
func (t *Tree) GetFaceCenter(o *Octant, face int) r3.Vector {
	c := t.GetCenter(o)
	half := t.sizeOf(o) / 2
	shift := faceShifts[face]
	c.X += float64(shift[0]) * half
	c.Y += float64(shift[1]) * half
	c.Z += float64(shift[2]) * half
	return c
}

// GetNormal returns the outward unit normal of an octant face.
func (t *Tree) GetNormal(face int) r3.Vector {
	shift := faceShifts[face]
	return r3.Vector{X: float64(shift[0]), Y: float64(shift[1]), Z: float64(shift[2])}
}

// FindNeighbours enumerates the neighbours of the internal octant idx across
// the given entity: a face (codim 1), an edge (codim 2, three-dimensional
// trees only) or a corner node (codim equal to the dimension). The result
// covers the full adjacency of the entity, including hanging coarse-fine
// neighbours; the parallel flags report which neighbours are ghosts.
func (t *Tree) FindNeighbours(idx uint32, entity, codim int) ([]uint32, []bool) {
	return t.findNeighboursOf(&t.octants[idx], entity, codim)
}

// FindGhostNeighbours enumerates the internal and ghost neighbours of the
// ghost octant idx across the given entity.
func (t *Tree) FindGhostNeighbours(idx uint32, entity, codim int) ([]uint32, []bool) {
	return t.findNeighboursOf(&t.ghosts[idx], entity, codim)
}

func (t *Tree) findNeighboursOf(o *Octant, entity, codim int) ([]uint32, []bool) {
	shift := entityShift(t.dim, entity, codim)
	region, ok := t.neighbourRegion(o, shift)
	if !ok {
		return nil, nil
	}

	var ids []uint32
	var ghostFlags []bool
	for _, idx := range t.collectRegion(t.octants, region, o, shift) {
		ids = append(ids, idx)
		ghostFlags = append(ghostFlags, false)
	}
	for _, idx := range t.collectRegion(t.ghosts, region, o, shift) {
		ids = append(ids, idx)
		ghostFlags = append(ghostFlags, true)
	}
	return ids, ghostFlags
}

// neighbourRegion computes the virtual same-size neighbour region of an
// octant across the given shift. Regions outside the root cube have no
// neighbours.
func (t *Tree) neighbourRegion(o *Octant, shift [3]int) (Octant, bool) {
	s := o.logicalSize(t.maxLevel)
	maxLen := t.maxLength()

	coords := [3]uint32{o.X, o.Y, o.Z}
	for axis := 0; axis < 3; axis++ {
		switch shift[axis] {
		case -1:
			if coords[axis] == 0 {
				return Octant{}, false
			}
			coords[axis] -= s
		case 1:
			if coords[axis]+s >= maxLen {
				return Octant{}, false
			}
			coords[axis] += s
		}
	}
	return Octant{X: coords[0], Y: coords[1], Z: coords[2], Lev: o.Lev}, true
}

// collectRegion yields the indices of the leaves of arr that lie in the
// region and touch the query octant across the shifted entity, in ascending
// index order.
func (t *Tree) collectRegion(arr []Octant, region Octant, o *Octant, shift [3]int) []uint32 {
	if len(arr) == 0 {
		return nil
	}

	mlow := region.morton(t.dim)
	mhigh := region.lastDescendantMorton(t.dim, t.maxLevel)

	i := sort.Search(len(arr), func(k int) bool {
		return arr[k].morton(t.dim) >= mlow
	})

	// A coarser or same-size neighbour covers the whole region and is the
	// unique leaf there.
	if i > 0 && arr[i-1].containsLogical(region.X, region.Y, region.Z, t.dim, t.maxLevel) {
		return []uint32{uint32(i - 1)}
	}
	if i < len(arr) && arr[i].morton(t.dim) == mlow && arr[i].Lev <= region.Lev {
		return []uint32{uint32(i)}
	}

	// Finer leaves inside the region; keep the ones abutting the shared
	// entity.
	var found []uint32
	for ; i < len(arr) && arr[i].morton(t.dim) <= mhigh; i++ {
		if t.touchesEntity(&arr[i], o, shift) {
			found = append(found, uint32(i))
		}
	}
	return found
}

// touchesEntity reports whether a candidate leaf abuts the query octant
// across the entity identified by the shift.
func (t *Tree) touchesEntity(cand, o *Octant, shift [3]int) bool {
	candSize := cand.logicalSize(t.maxLevel)
	oSize := o.logicalSize(t.maxLevel)
	candCoords := [3]uint32{cand.X, cand.Y, cand.Z}
	oCoords := [3]uint32{o.X, o.Y, o.Z}
	for axis := 0; axis < 3; axis++ {
		switch shift[axis] {
		case -1:
			if candCoords[axis]+candSize != oCoords[axis] {
				return false
			}
		case 1:
			if candCoords[axis] != oCoords[axis]+oSize {
				return false
			}
		}
	}
	return true
}

// GetPointOwner locates the internal octant whose box contains the point,
// within the tree tolerance. Points outside the root cube, or owned by
// another rank, yield false.
func (t *Tree) GetPointOwner(p r3.Vector) (uint32, bool) {
	maxLen := t.maxLength()
	h := t.length / float64(maxLen)
	tolLogical := t.tol / h

	coords := [3]float64{
		(p.X - t.origin.X) / h,
		(p.Y - t.origin.Y) / h,
		(p.Z - t.origin.Z) / h,
	}
	var logical [3]uint32
	nAxes := t.dim
	for axis := 0; axis < nAxes; axis++ {
		c := coords[axis]
		if c < -tolLogical || c > float64(maxLen)+tolLogical {
			return 0, false
		}
		c = math.Min(math.Max(c, 0), float64(maxLen)-1)
		logical[axis] = uint32(c)
	}

	m := encodeMorton(t.dim, logical[0], logical[1], logical[2])
	i := sort.Search(len(t.octants), func(k int) bool {
		return t.octants[k].morton(t.dim) > m
	})
	if i == 0 {
		return 0, false
	}
	if !t.octants[i-1].containsLogical(logical[0], logical[1], logical[2], t.dim, t.maxLevel) {
		return 0, false
	}
	return uint32(i - 1), true
}

// GetBoundingBox returns the physical bounding box of the root cube.
func (t *Tree) GetBoundingBox() (r3.Vector, r3.Vector) {
	max := t.origin.Add(r3.Vector{X: t.length, Y: t.length, Z: t.length})
	if t.dim == 2 {
		max.Z = t.origin.Z
	}
	return t.origin, max
}

// GlobalIndex returns the global index of the internal octant with the given
// local index.
func (t *Tree) GlobalIndex(idx uint32) uint64 {
	var offset uint64
	for r := 0; r < t.comm.Rank(); r++ {
		offset += t.counts[r]
	}
	return offset + uint64(idx)
}

// OwnerRank returns the rank owning the given Morton key.
func (t *Tree) OwnerRank(morton uint64) int {
	for r, last := range t.partitionLast {
		if morton <= last {
			return r
		}
	}
	return len(t.partitionLast) - 1
}

// GhostOwnerRank returns the rank owning the ghost octant with the given
// local index.
func (t *Tree) GhostOwnerRank(idx uint32) int {
	return t.OwnerRank(t.ghosts[idx].morton(t.dim))
}
