package mesh

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/LucaVerzeroliUnibg/bitpit/containers"
	"github.com/LucaVerzeroliUnibg/bitpit/elements"
)

// Cell is a mesh element: a shape tag, the vertex-id connectivity in the
// element's reference order, and per-face adjacency and interface runs held
// in flat ragged arrays with one slot per face. A face with an empty
// adjacency run is a border; a face with more than one neighbour is hanging.
type Cell struct {
	id       int64
	ctype    elements.Type
	interior bool
	connect  []int64

	interfaces  containers.FlatVector2D[int64]
	adjacencies containers.FlatVector2D[int64]
}

// NewCell builds a cell of the given shape with the given vertex ids.
func NewCell(id int64, ctype elements.Type, interior bool, connect []int64) Cell {
	info := elements.MustGet(ctype)
	return Cell{
		id:          id,
		ctype:       ctype,
		interior:    interior,
		connect:     connect,
		interfaces:  containers.NewFlatVector2D[int64](info.NFaces),
		adjacencies: containers.NewFlatVector2D[int64](info.NFaces),
	}
}

// ID returns the id of the cell.
func (c *Cell) ID() int64 { return c.id }

// Type returns the shape tag of the cell.
func (c *Cell) Type() elements.Type { return c.ctype }

// IsInterior reports whether the cell is owned by the local rank.
func (c *Cell) IsInterior() bool { return c.interior }

// VertexCount returns the number of vertices of the cell.
func (c *Cell) VertexCount() int { return len(c.connect) }

// Vertex returns the id of the k-th vertex of the cell.
func (c *Cell) Vertex(k int) int64 { return c.connect[k] }

// Connect returns the vertex connectivity of the cell.
func (c *Cell) Connect() []int64 { return c.connect }

// FaceCount returns the number of faces of the cell.
func (c *Cell) FaceCount() int { return c.adjacencies.SlotCount() }

// AdjacencyCount returns the number of neighbours across the given face.
func (c *Cell) AdjacencyCount(face int) int { return c.adjacencies.Count(face) }

// Adjacency returns the i-th neighbour across the given face.
func (c *Cell) Adjacency(face, i int) int64 { return c.adjacencies.Get(face, i) }

// Adjacencies returns a view of the neighbour run of the given face.
func (c *Cell) Adjacencies(face int) []int64 { return c.adjacencies.Slot(face) }

// PushAdjacency appends a neighbour to the face run unless already present.
func (c *Cell) PushAdjacency(face int, id int64) bool {
	if c.FindAdjacency(face, id) >= 0 {
		return false
	}
	c.adjacencies.PushBack(face, id)
	return true
}

// FindAdjacency returns the position of a neighbour in the face run, or -1.
func (c *Cell) FindAdjacency(face int, id int64) int {
	for i, v := range c.adjacencies.Slot(face) {
		if v == id {
			return i
		}
	}
	return -1
}

// DeleteAdjacency removes a neighbour from the face run.
func (c *Cell) DeleteAdjacency(face int, id int64) bool {
	i := c.FindAdjacency(face, id)
	if i < 0 {
		return false
	}
	c.adjacencies.Erase(face, i)
	return true
}

// InterfaceCount returns the number of interfaces on the given face.
func (c *Cell) InterfaceCount(face int) int { return c.interfaces.Count(face) }

// Interface returns the i-th interface of the given face.
func (c *Cell) Interface(face, i int) int64 { return c.interfaces.Get(face, i) }

// Interfaces returns a view of the interface run of the given face.
func (c *Cell) Interfaces(face int) []int64 { return c.interfaces.Slot(face) }

// AllInterfaces returns the interface ids of all faces.
func (c *Cell) AllInterfaces() []int64 {
	var all []int64
	for face := 0; face < c.FaceCount(); face++ {
		all = append(all, c.interfaces.Slot(face)...)
	}
	return all
}

// PushInterface appends an interface to the face run unless already present.
func (c *Cell) PushInterface(face int, id int64) bool {
	if c.FindInterface(face, id) >= 0 {
		return false
	}
	c.interfaces.PushBack(face, id)
	return true
}

// FindInterface returns the position of an interface in the face run, or -1.
func (c *Cell) FindInterface(face int, id int64) int {
	for i, v := range c.interfaces.Slot(face) {
		if v == id {
			return i
		}
	}
	return -1
}

// DeleteInterface removes an interface from the face run.
func (c *Cell) DeleteInterface(face int, id int64) bool {
	i := c.FindInterface(face, id)
	if i < 0 {
		return false
	}
	c.interfaces.Erase(face, i)
	return true
}

// IsFaceBorder reports whether the given face has no neighbour.
func (c *Cell) IsFaceBorder(face int) bool {
	return c.adjacencies.Count(face) == 0
}

// BinarySize returns the encoded size of the cell stream.
func (c *Cell) BinarySize() int {
	elementSize := 4 + 8 + 4 + 8*len(c.connect)
	return elementSize +
		containers.BinarySizeRagged(&c.interfaces) +
		containers.BinarySizeRagged(&c.adjacencies)
}

// WriteTo encodes the cell for field transfer: the element payload (shape
// tag, id, connectivity) followed by the interface and adjacency ragged
// blocks. No framing is added; the caller manages message boundaries.
func (c *Cell) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(c.ctype)); err != nil {
		return errors.Wrap(err, "cannot write cell type")
	}
	if err := binary.Write(w, binary.LittleEndian, c.id); err != nil {
		return errors.Wrap(err, "cannot write cell id")
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.connect))); err != nil {
		return errors.Wrap(err, "cannot write connectivity size")
	}
	if err := binary.Write(w, binary.LittleEndian, c.connect); err != nil {
		return errors.Wrap(err, "cannot write connectivity")
	}
	if err := containers.WriteRagged(w, &c.interfaces); err != nil {
		return errors.Wrap(err, "cannot write interfaces")
	}
	if err := containers.WriteRagged(w, &c.adjacencies); err != nil {
		return errors.Wrap(err, "cannot write adjacencies")
	}
	return nil
}

// ReadCell decodes a cell stream written by WriteTo. The decoded cell is
// marked interior; receivers of partition transfers own what they receive.
func ReadCell(r io.Reader) (Cell, error) {
	var c Cell
	var ctype uint32
	if err := binary.Read(r, binary.LittleEndian, &ctype); err != nil {
		return c, errors.Wrap(err, "cannot read cell type")
	}
	c.ctype = elements.Type(ctype)
	if err := binary.Read(r, binary.LittleEndian, &c.id); err != nil {
		return c, errors.Wrap(err, "cannot read cell id")
	}
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return c, errors.Wrap(err, "cannot read connectivity size")
	}
	c.connect = make([]int64, n)
	if err := binary.Read(r, binary.LittleEndian, c.connect); err != nil {
		return c, errors.Wrap(err, "cannot read connectivity")
	}
	var err error
	if c.interfaces, err = containers.ReadRagged(r); err != nil {
		return c, errors.Wrap(err, "cannot read interfaces")
	}
	if c.adjacencies, err = containers.ReadRagged(r); err != nil {
		return c, errors.Wrap(err, "cannot read adjacencies")
	}
	c.interior = true
	return c, nil
}
