package mesh

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/LucaVerzeroliUnibg/bitpit/octree"
)

// VerifyConsistency checks the structural invariants of the mesh: adjacency
// symmetry, interface linkage on both sides, vertex stitching by corner
// Morton key, Morton ordering of the octant arrays and the 2:1 balance of
// adjacent balance-enabled cells. All violations are aggregated.
func (m *Mesh) VerifyConsistency() error {
	var err error
	err = multierr.Append(err, m.verifyAdjacencySymmetry())
	err = multierr.Append(err, m.verifyInterfaceLinkage())
	err = multierr.Append(err, m.verifyStitching())
	err = multierr.Append(err, m.verifyMortonOrder())
	err = multierr.Append(err, m.verifyBalance())
	return err
}

func (m *Mesh) verifyAdjacencySymmetry() error {
	var err error
	m.cells.Range(func(id int64, c *Cell) bool {
		for face := 0; face < c.FaceCount(); face++ {
			for _, neighID := range c.Adjacencies(face) {
				neigh, ok := m.cells.Get(neighID)
				if !ok {
					err = multierr.Append(err, errors.Errorf("cell %d face %d lists unknown neighbour %d", id, face, neighID))
					continue
				}
				if neigh.FindAdjacency(octree.OppositeFace(face), id) < 0 {
					err = multierr.Append(err, errors.Errorf("cell %d face %d neighbour %d does not list it back", id, face, neighID))
				}
			}
		}
		return true
	})
	return err
}

func (m *Mesh) verifyInterfaceLinkage() error {
	var err error
	m.interfaces.Range(func(id int64, iface *Interface) bool {
		owner, ok := m.cells.Get(iface.Owner())
		if !ok {
			err = multierr.Append(err, errors.Errorf("interface %d has unknown owner %d", id, iface.Owner()))
			return true
		}
		if owner.FindInterface(iface.OwnerFace(), id) < 0 {
			err = multierr.Append(err, errors.Errorf("interface %d is not linked by its owner %d", id, iface.Owner()))
		}
		if iface.IsBorder() {
			return true
		}
		neigh, ok := m.cells.Get(iface.Neigh())
		if !ok {
			err = multierr.Append(err, errors.Errorf("interface %d has unknown neighbour %d", id, iface.Neigh()))
			return true
		}
		if neigh.FindInterface(iface.NeighFace(), id) < 0 {
			err = multierr.Append(err, errors.Errorf("interface %d is not linked by its neighbour %d", id, iface.Neigh()))
		}
		return true
	})
	return err
}

func (m *Mesh) verifyStitching() error {
	var err error
	byKey := map[uint64]int64{}
	m.cells.Range(func(id int64, c *Cell) bool {
		ref, refErr := m.cellOctant(id)
		if refErr != nil {
			err = multierr.Append(err, refErr)
			return true
		}
		oct := m.octant(ref)
		for k := 0; k < c.VertexCount(); k++ {
			key := m.tree.GetNodeMorton(oct, k)
			vertexID := c.Vertex(k)
			if prev, seen := byKey[key]; seen {
				if prev != vertexID {
					err = multierr.Append(err, errors.Errorf("corner key %d stitched to vertices %d and %d", key, prev, vertexID))
				}
				continue
			}
			byKey[key] = vertexID
		}
		return true
	})
	return err
}

func (m *Mesh) verifyMortonOrder() error {
	var err error
	for i := 1; i < m.tree.NumOctants(); i++ {
		prev := m.tree.GetMorton(m.tree.Octant(uint32(i - 1)))
		cur := m.tree.GetMorton(m.tree.Octant(uint32(i)))
		if prev >= cur {
			err = multierr.Append(err, errors.Errorf("internal octants %d and %d are not Morton-increasing", i-1, i))
		}
	}
	for i := 1; i < m.tree.NumGhosts(); i++ {
		prev := m.tree.GetMorton(m.tree.GhostOctant(uint32(i - 1)))
		cur := m.tree.GetMorton(m.tree.GhostOctant(uint32(i)))
		if prev >= cur {
			err = multierr.Append(err, errors.Errorf("ghost octants %d and %d are not Morton-increasing", i-1, i))
		}
	}
	return err
}

func (m *Mesh) verifyBalance() error {
	var err error
	for idx := uint32(0); idx < uint32(m.tree.NumOctants()); idx++ {
		o := m.tree.Octant(idx)
		if !o.Balance() {
			continue
		}
		for codim := 1; codim <= m.dim; codim++ {
			for entity := 0; entity < m.entityCount(codim); entity++ {
				neighIdxs, neighGhosts := m.tree.FindNeighbours(idx, entity, codim)
				for k, neighIdx := range neighIdxs {
					var neigh *octree.Octant
					if neighGhosts[k] {
						neigh = m.tree.GhostOctant(neighIdx)
					} else {
						neigh = m.tree.Octant(neighIdx)
					}
					if !neigh.Balance() {
						continue
					}
					diff := neigh.Level() - o.Level()
					if diff < -1 || diff > 1 {
						err = multierr.Append(err, errors.Errorf("octants %d and %d differ by more than one level", idx, neighIdx))
					}
				}
			}
		}
	}
	return err
}
