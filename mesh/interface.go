package mesh

import (
	"github.com/LucaVerzeroliUnibg/bitpit/elements"
)

// Interface is an explicit codimension-1 entity between two cells, or
// between a cell and the domain boundary. The owner is the cell of the finer
// level on a hanging face, or the cell with the lower id on a conforming
// face; the interface connectivity is the owner's face-local connectivity.
type Interface struct {
	id      int64
	itype   elements.Type
	connect []int64

	owner     int64
	ownerFace int
	neigh     int64
	neighFace int
}

// ID returns the id of the interface.
func (i *Interface) ID() int64 { return i.id }

// Type returns the shape tag of the interface.
func (i *Interface) Type() elements.Type { return i.itype }

// Connect returns the vertex connectivity of the interface.
func (i *Interface) Connect() []int64 { return i.connect }

// Owner returns the id of the owner cell.
func (i *Interface) Owner() int64 { return i.owner }

// OwnerFace returns the local face index of the interface on the owner.
func (i *Interface) OwnerFace() int { return i.ownerFace }

// Neigh returns the id of the neighbour cell, or NullID on a border.
func (i *Interface) Neigh() int64 { return i.neigh }

// NeighFace returns the local face index of the interface on the neighbour.
func (i *Interface) NeighFace() int { return i.neighFace }

// IsBorder reports whether the interface lies on the domain boundary.
func (i *Interface) IsBorder() bool { return i.neigh == NullID }
