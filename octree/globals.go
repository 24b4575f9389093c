package octree

// DefaultMaxLevels is the default maximum refinement level; 2^DefaultMaxLevels
// logical cells per axis keep every 3-D Morton key inside 64 bits.
const DefaultMaxLevels = 20

// Incidence tables of the octant reference cube. Faces are ordered
// -x, +x, -y, +y, -z, +z; nodes follow the Morton order of the corners;
// edges are ordered by the face pairs that share them.

// oppFace maps a face to the face seen from the neighbour across it.
func oppFace(face int) int {
	return face ^ 1
}

// faceShifts gives the logical displacement of the neighbour region across
// each face.
var faceShifts = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// edgeShifts gives the logical displacement of the neighbour region across
// each edge of a three-dimensional octant.
var edgeShifts = [12][3]int{
	{-1, 0, -1}, {1, 0, -1}, {0, -1, -1}, {0, 1, -1},
	{-1, -1, 0}, {1, -1, 0}, {-1, 1, 0}, {1, 1, 0},
	{-1, 0, 1}, {1, 0, 1}, {0, -1, 1}, {0, 1, 1},
}

// edgeNodes lists the two local nodes of each edge.
var edgeNodes = [12][2]int{
	{0, 2}, {1, 3}, {0, 1}, {2, 3},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
	{4, 6}, {5, 7}, {4, 5}, {6, 7},
}

// nodeShifts3D gives the logical displacement of the neighbour region across
// each corner of a three-dimensional octant.
var nodeShifts3D = [8][3]int{
	{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
}

// nodeShifts2D is the two-dimensional counterpart of nodeShifts3D.
var nodeShifts2D = [4][3]int{
	{-1, -1, 0}, {1, -1, 0}, {-1, 1, 0}, {1, 1, 0},
}

// facesOnVertex3D lists the local faces sharing each corner of a
// three-dimensional octant.
var facesOnVertex3D = [8][3]int{
	{0, 2, 4}, {1, 2, 4}, {0, 3, 4}, {1, 3, 4},
	{0, 2, 5}, {1, 2, 5}, {0, 3, 5}, {1, 3, 5},
}

// facesOnVertex2D lists the local faces sharing each corner of a
// two-dimensional octant.
var facesOnVertex2D = [4][2]int{
	{0, 2}, {1, 2}, {0, 3}, {1, 3},
}

// edgesOnVertex lists the local edges sharing each corner of a
// three-dimensional octant.
var edgesOnVertex = [8][3]int{
	{0, 2, 4}, {1, 2, 5}, {0, 3, 6}, {1, 3, 7},
	{4, 8, 10}, {5, 9, 10}, {6, 8, 11}, {7, 9, 11},
}

// facesOnEdge lists the two local faces sharing each edge of a
// three-dimensional octant.
var facesOnEdge = [12][2]int{
	{0, 4}, {1, 4}, {2, 4}, {3, 4},
	{0, 2}, {1, 2}, {0, 3}, {1, 3},
	{0, 5}, {1, 5}, {2, 5}, {3, 5},
}

// NumChildren returns the number of children of an octant.
func NumChildren(dim int) int { return 1 << dim }

// NumFaces returns the number of faces of an octant.
func NumFaces(dim int) int { return 2 * dim }

// NumNodes returns the number of corner nodes of an octant.
func NumNodes(dim int) int { return 1 << dim }

// NumEdges returns the number of edges of a three-dimensional octant; a
// two-dimensional octant has none distinct from its corners.
func NumEdges(dim int) int {
	if dim == 3 {
		return 12
	}
	return 0
}

// OppositeFace returns the face seen from the neighbour across the given
// face.
func OppositeFace(face int) int { return oppFace(face) }

// FacesOnVertex lists the local faces incident to a corner node.
func FacesOnVertex(dim, node int) []int {
	if dim == 3 {
		f := facesOnVertex3D[node]
		return f[:]
	}
	f := facesOnVertex2D[node]
	return f[:]
}

// EdgesOnVertex lists the local edges incident to a corner node of a
// three-dimensional octant.
func EdgesOnVertex(node int) []int {
	e := edgesOnVertex[node]
	return e[:]
}

// FacesOnEdge lists the two local faces sharing an edge of a
// three-dimensional octant.
func FacesOnEdge(edge int) []int {
	f := facesOnEdge[edge]
	return f[:]
}

// entityShift returns the logical displacement of the neighbour region for
// an entity of the given codimension.
func entityShift(dim, entity, codim int) [3]int {
	switch {
	case codim == 1:
		return faceShifts[entity]
	case dim == 3 && codim == 2:
		return edgeShifts[entity]
	case dim == 3:
		return nodeShifts3D[entity]
	default:
		return nodeShifts2D[entity]
	}
}
