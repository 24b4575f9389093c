// Package elements provides the closed registry of element shapes: vertex
// and face counts, face and edge local connectivity and the shape of each
// face. The registry is a process-wide constant table built at startup;
// readers never mutate it.
package elements

import "fmt"

// Type tags an element shape.
type Type int

// The closed enumeration of element shapes. Pixels and voxels are the
// axis-aligned quadrilateral and hexahedral elements produced by the octree;
// their vertex numbering follows the Morton order of the octant corners.
const (
	Undefined Type = iota
	Vertex
	Line
	Triangle
	Quad
	Pixel
	Tetra
	Hex
	Voxel
	Wedge
	Pyramid
	Polygon
	Polyhedron
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case Vertex:
		return "vertex"
	case Line:
		return "line"
	case Triangle:
		return "triangle"
	case Quad:
		return "quad"
	case Pixel:
		return "pixel"
	case Tetra:
		return "tetra"
	case Hex:
		return "hex"
	case Voxel:
		return "voxel"
	case Wedge:
		return "wedge"
	case Pyramid:
		return "pyramid"
	case Polygon:
		return "polygon"
	case Polyhedron:
		return "polyhedron"
	default:
		return "undefined"
	}
}

// Info describes the reference connectivity of a concrete element shape.
// Polygon and polyhedron elements carry inline per-cell connectivity and
// have no reference table.
type Info struct {
	Type      Type
	NVertices int
	NFaces    int
	NEdges    int

	// FaceTypes holds the shape of each face; FaceConnect the local vertex
	// indices of each face; EdgeConnect the local vertex indices of each
	// edge.
	FaceTypes   []Type
	FaceConnect [][]int
	EdgeConnect [][]int
}

var registry = map[Type]*Info{
	Vertex: {
		Type:      Vertex,
		NVertices: 1,
	},
	Line: {
		Type:        Line,
		NVertices:   2,
		NFaces:      2,
		FaceTypes:   []Type{Vertex, Vertex},
		FaceConnect: [][]int{{0}, {1}},
	},
	Triangle: {
		Type:        Triangle,
		NVertices:   3,
		NFaces:      3,
		NEdges:      3,
		FaceTypes:   []Type{Line, Line, Line},
		FaceConnect: [][]int{{0, 1}, {1, 2}, {2, 0}},
		EdgeConnect: [][]int{{0, 1}, {1, 2}, {2, 0}},
	},
	Quad: {
		Type:        Quad,
		NVertices:   4,
		NFaces:      4,
		NEdges:      4,
		FaceTypes:   []Type{Line, Line, Line, Line},
		FaceConnect: [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
		EdgeConnect: [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}},
	},
	// Pixel faces are ordered -x, +x, -y, +y to match the octant face
	// ordering; vertex numbering is the Morton order of the corners.
	Pixel: {
		Type:        Pixel,
		NVertices:   4,
		NFaces:      4,
		NEdges:      4,
		FaceTypes:   []Type{Line, Line, Line, Line},
		FaceConnect: [][]int{{0, 2}, {1, 3}, {0, 1}, {2, 3}},
		EdgeConnect: [][]int{{0, 2}, {1, 3}, {0, 1}, {2, 3}},
	},
	Tetra: {
		Type:        Tetra,
		NVertices:   4,
		NFaces:      4,
		NEdges:      6,
		FaceTypes:   []Type{Triangle, Triangle, Triangle, Triangle},
		FaceConnect: [][]int{{1, 0, 2}, {0, 3, 2}, {3, 1, 2}, {0, 1, 3}},
		EdgeConnect: [][]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}},
	},
	Hex: {
		Type:      Hex,
		NVertices: 8,
		NFaces:    6,
		NEdges:    12,
		FaceTypes: []Type{Quad, Quad, Quad, Quad, Quad, Quad},
		FaceConnect: [][]int{
			{1, 0, 3, 2}, {4, 5, 6, 7}, {7, 3, 0, 4},
			{5, 1, 2, 6}, {4, 0, 1, 5}, {2, 3, 7, 6},
		},
		EdgeConnect: [][]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{4, 5}, {5, 6}, {6, 7}, {7, 4},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
		},
	},
	// Voxel faces are ordered -x, +x, -y, +y, -z, +z to match the octant
	// face ordering; vertex numbering is the Morton order of the corners.
	Voxel: {
		Type:      Voxel,
		NVertices: 8,
		NFaces:    6,
		NEdges:    12,
		FaceTypes: []Type{Pixel, Pixel, Pixel, Pixel, Pixel, Pixel},
		FaceConnect: [][]int{
			{0, 2, 4, 6}, {1, 3, 5, 7},
			{0, 1, 4, 5}, {2, 3, 6, 7},
			{0, 1, 2, 3}, {4, 5, 6, 7},
		},
		EdgeConnect: [][]int{
			{0, 2}, {1, 3}, {0, 1}, {2, 3},
			{0, 4}, {1, 5}, {2, 6}, {3, 7},
			{4, 6}, {5, 7}, {4, 5}, {6, 7},
		},
	},
	Wedge: {
		Type:      Wedge,
		NVertices: 6,
		NFaces:    5,
		NEdges:    9,
		FaceTypes: []Type{Triangle, Triangle, Quad, Quad, Quad},
		FaceConnect: [][]int{
			{0, 1, 2}, {3, 5, 4},
			{0, 3, 4, 1}, {1, 4, 5, 2}, {2, 5, 3, 0},
		},
		EdgeConnect: [][]int{
			{0, 1}, {1, 2}, {2, 0},
			{3, 4}, {4, 5}, {5, 3},
			{0, 3}, {1, 4}, {2, 5},
		},
	},
	Pyramid: {
		Type:      Pyramid,
		NVertices: 5,
		NFaces:    5,
		NEdges:    8,
		FaceTypes: []Type{Quad, Triangle, Triangle, Triangle, Triangle},
		FaceConnect: [][]int{
			{0, 3, 2, 1},
			{0, 1, 4}, {1, 2, 4}, {2, 3, 4}, {3, 0, 4},
		},
		EdgeConnect: [][]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 0},
			{0, 4}, {1, 4}, {2, 4}, {3, 4},
		},
	},
}

// Get returns the reference info of a concrete element shape. Polygon and
// polyhedron have no reference table and yield false, like unknown tags.
func Get(t Type) (*Info, bool) {
	info, ok := registry[t]
	return info, ok
}

// MustGet returns the reference info of a concrete element shape, panicking
// on shapes without a reference table.
func MustGet(t Type) *Info {
	info, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("element type %v has no reference connectivity", t))
	}
	return info
}
