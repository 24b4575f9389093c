// Package mesh implements the octree-backed volumetric mesh: cells, vertices
// and explicit interfaces mirrored from a linear octree, kept consistent with
// it through adaption, partitioning and the event stream that applications
// use for field transfer.
package mesh

import (
	"github.com/golang/geo/r3"

	"github.com/LucaVerzeroliUnibg/bitpit/containers"
)

// NullID marks the absence of an entity in id-based links.
const NullID = containers.NullID

// Vertex is a mesh node. Vertices are shared between cells: during import
// they are uniquified by the Morton key of the octant corner they sit on.
type Vertex struct {
	id     int64
	coords r3.Vector
}

// ID returns the id of the vertex.
func (v *Vertex) ID() int64 { return v.id }

// Coords returns the coordinates of the vertex.
func (v *Vertex) Coords() r3.Vector { return v.coords }
