package mesh

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/LucaVerzeroliUnibg/bitpit/containers"
	"github.com/LucaVerzeroliUnibg/bitpit/elements"
	"github.com/LucaVerzeroliUnibg/bitpit/octree"
)

// Sentinel errors of the mesh operations.
var (
	// ErrInvalidArgument reports a malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports an unknown cell or interface id.
	ErrNotFound = errors.New("entity not found")
	// ErrInconsistentState reports a mesh that cannot be synchronised with
	// its octree.
	ErrInconsistentState = errors.New("inconsistent mesh state")
)

// Mesh is a conforming cell complex mirrored from a linear octree. Cells,
// vertices and interfaces live in pierced containers and reference each
// other by id; two bidirectional maps tie cells to internal and ghost
// octants and are the only link between mesh and tree. The mesh owns its
// tree exclusively: the tree must not be mutated behind its back.
type Mesh struct {
	id     int
	dim    int
	logger golog.Logger
	tree   *octree.Tree

	cells      *containers.PiercedVector[Cell]
	vertices   *containers.PiercedVector[Vertex]
	interfaces *containers.PiercedVector[Interface]

	cellToOctant map[int64]uint32
	octantToCell map[uint32]int64
	cellToGhost  map[int64]uint32
	ghostToCell  map[uint32]int64
	ghostRanks   map[int64]int

	cellTypeInfo      *elements.Info
	interfaceTypeInfo *elements.Info
	normals           []r3.Vector

	levelSize   []float64
	levelArea   []float64
	levelVolume []float64

	exchangeSources map[int][]int64
	exchangeTargets map[int][]int64

	// Dangling cells left by the last deletion pass, reconnected by the
	// next import.
	pendingDangling map[int64]struct{}

	nextCellID      int64
	nextVertexID    int64
	nextInterfaceID int64
}

// New builds a mesh over the cube with the given origin and edge length.
// The initial uniform refinement level is ceil(log2(max(1, length/dh)));
// the initial cells are imported before New returns. A nil communicator
// yields a serial mesh.
func New(id, dim int, origin r3.Vector, length, dh float64, logger golog.Logger, comm octree.Communicator) (*Mesh, error) {
	tree, err := octree.NewTree(dim, origin, length, octree.DefaultMaxLevels, logger, comm)
	if err != nil {
		return nil, err
	}
	if dh <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid initial cell size %g", dh)
	}

	m := &Mesh{
		id:           id,
		dim:          dim,
		logger:       logger,
		tree:         tree,
		cells:        containers.NewPiercedVector[Cell](),
		vertices:     containers.NewPiercedVector[Vertex](),
		interfaces:   containers.NewPiercedVector[Interface](),
		cellToOctant: map[int64]uint32{},
		octantToCell: map[uint32]int64{},
		cellToGhost:  map[int64]uint32{},
		ghostToCell:  map[uint32]int64{},
		ghostRanks:   map[int64]int{},
	}

	if dim == 3 {
		m.cellTypeInfo = elements.MustGet(elements.Voxel)
		m.interfaceTypeInfo = elements.MustGet(elements.Pixel)
	} else {
		m.cellTypeInfo = elements.MustGet(elements.Pixel)
		m.interfaceTypeInfo = elements.MustGet(elements.Line)
	}
	for face := 0; face < octree.NumFaces(dim); face++ {
		m.normals = append(m.normals, tree.GetNormal(face))
	}
	m.initializeTreeGeometry()

	logger.Infof("initializing octree mesh %d", id)

	initialLevel := int(math.Ceil(math.Log2(math.Max(1, length/dh))))
	if tree.NumOctants() > 0 {
		tree.SetMarker(0, initialLevel)
	}
	if _, err := tree.Adapt(false); err != nil {
		return nil, err
	}
	if _, err := m.sync(false); err != nil {
		return nil, err
	}
	return m, nil
}

// initializeTreeGeometry precomputes the per-level cell size, interface area
// and cell volume tables.
func (m *Mesh) initializeTreeGeometry() {
	maxLevel := m.tree.MaxLevel()
	length := m.tree.Length()

	m.levelSize = m.levelSize[:0]
	m.levelArea = m.levelArea[:0]
	m.levelVolume = m.levelVolume[:0]
	for level := 0; level <= maxLevel; level++ {
		h := length / math.Pow(2, float64(level))
		m.levelSize = append(m.levelSize, h)
		m.levelArea = append(m.levelArea, math.Pow(h, float64(m.dim-1)))
		m.levelVolume = append(m.levelVolume, math.Pow(h, float64(m.dim)))
	}
}

// ID returns the id of the mesh.
func (m *Mesh) ID() int { return m.id }

// Dimension returns the dimension of the mesh, 2 or 3.
func (m *Mesh) Dimension() int { return m.dim }

// Tree returns the octree backing the mesh.
func (m *Mesh) Tree() *octree.Tree { return m.tree }

// CellCount returns the number of cells, interior and ghost.
func (m *Mesh) CellCount() int { return m.cells.Count() }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return m.vertices.Count() }

// InterfaceCount returns the number of interfaces.
func (m *Mesh) InterfaceCount() int { return m.interfaces.Count() }

// Cell returns the cell with the given id.
func (m *Mesh) Cell(id int64) (*Cell, error) {
	c, ok := m.cells.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "cell %d", id)
	}
	return c, nil
}

// Vertex returns the vertex with the given id.
func (m *Mesh) Vertex(id int64) (*Vertex, error) {
	v, ok := m.vertices.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "vertex %d", id)
	}
	return v, nil
}

// Interface returns the interface with the given id.
func (m *Mesh) Interface(id int64) (*Interface, error) {
	i, ok := m.interfaces.Get(id)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "interface %d", id)
	}
	return i, nil
}

// CellIDs returns the ids of all cells in storage order.
func (m *Mesh) CellIDs() []int64 { return m.cells.IDs() }

// InterfaceIDs returns the ids of all interfaces in storage order.
func (m *Mesh) InterfaceIDs() []int64 { return m.interfaces.IDs() }

// octantRef identifies an octant in either the internal or the ghost array.
type octantRef struct {
	idx      uint32
	internal bool
}

// cellOctant returns the octant backing a cell.
func (m *Mesh) cellOctant(id int64) (octantRef, error) {
	c, ok := m.cells.Get(id)
	if !ok {
		return octantRef{}, errors.Wrapf(ErrNotFound, "cell %d", id)
	}
	if c.IsInterior() {
		return octantRef{idx: m.cellToOctant[id], internal: true}, nil
	}
	return octantRef{idx: m.cellToGhost[id], internal: false}, nil
}

// octantCell returns the cell id backing an octant, or NullID.
func (m *Mesh) octantCell(ref octantRef) int64 {
	if ref.internal {
		if id, ok := m.octantToCell[ref.idx]; ok {
			return id
		}
		return NullID
	}
	if id, ok := m.ghostToCell[ref.idx]; ok {
		return id
	}
	return NullID
}

// octant resolves an octant reference on the tree.
func (m *Mesh) octant(ref octantRef) *octree.Octant {
	if ref.internal {
		return m.tree.Octant(ref.idx)
	}
	return m.tree.GhostOctant(ref.idx)
}

// CellLevel returns the refinement level of a cell.
func (m *Mesh) CellLevel(id int64) (int, error) {
	ref, err := m.cellOctant(id)
	if err != nil {
		return 0, err
	}
	return m.octant(ref).Level(), nil
}

// MarkCellForRefinement requests one refinement step of the cell. Markers on
// ghost cells are rejected.
func (m *Mesh) MarkCellForRefinement(id int64) bool {
	return m.setMarker(id, 1)
}

// MarkCellForCoarsening requests one coarsening step of the cell. Markers on
// ghost cells are rejected.
func (m *Mesh) MarkCellForCoarsening(id int64) bool {
	return m.setMarker(id, -1)
}

func (m *Mesh) setMarker(id int64, marker int) bool {
	ref, err := m.cellOctant(id)
	if err != nil || !ref.internal {
		return false
	}
	m.tree.SetMarker(ref.idx, marker)
	return true
}

// EnableCellBalancing opts a cell in or out of the 2:1 constraint. Requests
// on ghost cells are rejected.
func (m *Mesh) EnableCellBalancing(id int64, enabled bool) bool {
	ref, err := m.cellOctant(id)
	if err != nil || !ref.internal {
		return false
	}
	m.tree.SetBalance(ref.idx, enabled)
	return true
}

// EvalCellVolume returns the volume of a cell.
func (m *Mesh) EvalCellVolume(id int64) (float64, error) {
	level, err := m.CellLevel(id)
	if err != nil {
		return 0, err
	}
	return m.levelVolume[level], nil
}

// EvalCellSize returns the characteristic size of a cell.
func (m *Mesh) EvalCellSize(id int64) (float64, error) {
	level, err := m.CellLevel(id)
	if err != nil {
		return 0, err
	}
	return m.levelSize[level], nil
}

// EvalCellCentroid returns the centroid of a cell.
func (m *Mesh) EvalCellCentroid(id int64) (r3.Vector, error) {
	ref, err := m.cellOctant(id)
	if err != nil {
		return r3.Vector{}, err
	}
	return m.tree.GetCenter(m.octant(ref)), nil
}

// EvalInterfaceArea returns the area of an interface, the face area of its
// owner.
func (m *Mesh) EvalInterfaceArea(id int64) (float64, error) {
	iface, err := m.Interface(id)
	if err != nil {
		return 0, err
	}
	level, err := m.CellLevel(iface.Owner())
	if err != nil {
		return 0, err
	}
	return m.levelArea[level], nil
}

// EvalInterfaceNormal returns the normal of an interface, oriented outward
// from the owner's face.
func (m *Mesh) EvalInterfaceNormal(id int64) (r3.Vector, error) {
	iface, err := m.Interface(id)
	if err != nil {
		return r3.Vector{}, err
	}
	return m.normals[iface.OwnerFace()], nil
}

// IsPointInside reports whether the point lies inside the local mesh.
func (m *Mesh) IsPointInside(p r3.Vector) bool {
	_, ok := m.tree.GetPointOwner(p)
	return ok
}

// IsPointInsideCell reports whether the point lies inside the given cell,
// within the mesh tolerance.
func (m *Mesh) IsPointInsideCell(id int64, p r3.Vector) (bool, error) {
	c, err := m.Cell(id)
	if err != nil {
		return false, err
	}
	lower, err := m.Vertex(c.Vertex(0))
	if err != nil {
		return false, err
	}
	upper, err := m.Vertex(c.Vertex(c.VertexCount() - 1))
	if err != nil {
		return false, err
	}

	eps := m.tree.Tol()
	lo := lower.Coords()
	hi := upper.Coords()
	if p.X < lo.X-eps || p.X > hi.X+eps {
		return false, nil
	}
	if p.Y < lo.Y-eps || p.Y > hi.Y+eps {
		return false, nil
	}
	if p.Z < lo.Z-eps || p.Z > hi.Z+eps {
		return false, nil
	}
	return true, nil
}

// LocatePoint returns the id of the cell containing the point, or NullID
// when the point lies outside the local mesh.
func (m *Mesh) LocatePoint(p r3.Vector) int64 {
	idx, ok := m.tree.GetPointOwner(p)
	if !ok {
		return NullID
	}
	return m.octantCell(octantRef{idx: idx, internal: true})
}

// SetTol sets the tolerance of the geometric checks.
func (m *Mesh) SetTol(tol float64) { m.tree.SetTol(tol) }

// ResetTol restores the default tolerance of the geometric checks.
func (m *Mesh) ResetTol() { m.tree.ResetTol() }

// Tol returns the tolerance of the geometric checks.
func (m *Mesh) Tol() float64 { return m.tree.Tol() }

// Translate moves the mesh rigidly.
func (m *Mesh) Translate(v r3.Vector) {
	m.tree.SetOrigin(m.tree.Origin().Add(v))
	m.vertices.Range(func(id int64, vert *Vertex) bool {
		vert.coords = vert.coords.Add(v)
		return true
	})
}

// Scale rescales the mesh about the coordinate origin. Octree meshes only
// support uniform scaling: the three components must agree within 1e-14.
func (m *Mesh) Scale(s r3.Vector) error {
	if math.Abs(s.X-s.Y) > 1e-14 || math.Abs(s.X-s.Z) > 1e-14 {
		return errors.Wrapf(ErrInvalidArgument, "octree mesh only allows uniform scaling, got (%g, %g, %g)", s.X, s.Y, s.Z)
	}
	factor := s.X
	m.tree.SetOrigin(m.tree.Origin().Mul(factor))
	m.tree.SetLength(m.tree.Length() * factor)
	m.initializeTreeGeometry()
	m.vertices.Range(func(id int64, vert *Vertex) bool {
		vert.coords = vert.coords.Mul(factor)
		return true
	})
	return nil
}

// GhostCellRank returns the rank owning a ghost cell.
func (m *Mesh) GhostCellRank(id int64) (int, error) {
	rank, ok := m.ghostRanks[id]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "ghost cell %d", id)
	}
	return rank, nil
}

// GhostExchangeSources returns, per neighbouring rank, the ordered interior
// cells whose data that rank needs during field transfer.
func (m *Mesh) GhostExchangeSources() map[int][]int64 { return m.exchangeSources }

// GhostExchangeTargets returns, per owning rank, the ordered ghost cells
// filled by that rank during field transfer.
func (m *Mesh) GhostExchangeTargets() map[int][]int64 { return m.exchangeTargets }
