package mesh

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/LucaVerzeroliUnibg/bitpit/octree"
)

// addToOrdered inserts an id into an ascending slice unless already present.
func addToOrdered(ids []int64, id int64) []int64 {
	i := sort.Search(len(ids), func(k int) bool { return ids[k] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// findCellCodimensionNeighs returns the neighbours of the cell across the
// given entity of the given codimension, excluding the black list, in
// ascending id order.
func (m *Mesh) findCellCodimensionNeighs(id int64, entity, codim int, blackList []int64) ([]int64, error) {
	if codim <= 0 || codim > m.dim {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid codimension %d", codim)
	}
	ref, err := m.cellOctant(id)
	if err != nil {
		return nil, err
	}

	var neighIdxs []uint32
	var neighGhosts []bool
	if ref.internal {
		neighIdxs, neighGhosts = m.tree.FindNeighbours(ref.idx, entity, codim)
	} else {
		neighIdxs, neighGhosts = m.tree.FindGhostNeighbours(ref.idx, entity, codim)
	}

	var neighs []int64
	for k, neighIdx := range neighIdxs {
		neighID := m.octantCell(octantRef{idx: neighIdx, internal: !neighGhosts[k]})
		if neighID == NullID || contains(blackList, neighID) {
			continue
		}
		neighs = addToOrdered(neighs, neighID)
	}
	return neighs, nil
}

// FindCellFaceNeighsOfFace returns the neighbours of the cell across one
// face, excluding the black list, in ascending id order.
func (m *Mesh) FindCellFaceNeighsOfFace(id int64, face int, blackList []int64) ([]int64, error) {
	if face < 0 || face >= octree.NumFaces(m.dim) {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid face %d", face)
	}
	return m.findCellCodimensionNeighs(id, face, 1, blackList)
}

// FindCellFaceNeighs returns the neighbours of the cell across all faces in
// ascending id order.
func (m *Mesh) FindCellFaceNeighs(id int64) ([]int64, error) {
	var neighs []int64
	for face := 0; face < octree.NumFaces(m.dim); face++ {
		faceNeighs, err := m.FindCellFaceNeighsOfFace(id, face, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range faceNeighs {
			neighs = addToOrdered(neighs, n)
		}
	}
	return neighs, nil
}

// FindCellEdgeNeighs returns the neighbours of the cell across one edge,
// including the neighbours of the faces sharing the edge, excluding the
// black list. Only three-dimensional meshes have edges.
func (m *Mesh) FindCellEdgeNeighs(id int64, edge int, blackList []int64) ([]int64, error) {
	if m.dim != 3 {
		return nil, errors.Wrap(ErrInvalidArgument, "edge neighbours need a three-dimensional mesh")
	}
	if edge < 0 || edge >= octree.NumEdges(m.dim) {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid edge %d", edge)
	}

	neighs, err := m.findCellCodimensionNeighs(id, edge, 2, blackList)
	if err != nil {
		return nil, err
	}
	for _, face := range octree.FacesOnEdge(edge) {
		faceNeighs, err := m.FindCellFaceNeighsOfFace(id, face, blackList)
		if err != nil {
			return nil, err
		}
		for _, n := range faceNeighs {
			neighs = addToOrdered(neighs, n)
		}
	}
	return neighs, nil
}

// FindCellVertexNeighs returns the neighbours of the cell across one corner
// vertex, including the neighbours of the incident lower-codimension
// entities, excluding the black list.
func (m *Mesh) FindCellVertexNeighs(id int64, vertex int, blackList []int64) ([]int64, error) {
	if vertex < 0 || vertex >= octree.NumNodes(m.dim) {
		return nil, errors.Wrapf(ErrInvalidArgument, "invalid vertex %d", vertex)
	}

	neighs, err := m.findCellCodimensionNeighs(id, vertex, m.dim, blackList)
	if err != nil {
		return nil, err
	}
	if m.dim == 3 {
		for _, edge := range octree.EdgesOnVertex(vertex) {
			edgeNeighs, err := m.FindCellEdgeNeighs(id, edge, blackList)
			if err != nil {
				return nil, err
			}
			for _, n := range edgeNeighs {
				neighs = addToOrdered(neighs, n)
			}
		}
	} else {
		for _, face := range octree.FacesOnVertex(m.dim, vertex) {
			faceNeighs, err := m.FindCellFaceNeighsOfFace(id, face, blackList)
			if err != nil {
				return nil, err
			}
			for _, n := range faceNeighs {
				neighs = addToOrdered(neighs, n)
			}
		}
	}
	return neighs, nil
}
