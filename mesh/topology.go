package mesh

import (
	"sort"

	"github.com/LucaVerzeroliUnibg/bitpit/octree"
)

// deleteCells removes the cells of the dead octants together with their
// interfaces and orphaned vertices. Surviving cells that lose a neighbour
// across a face, the dangling cells, get the dead interface and neighbour
// scrubbed from their runs. The returned stitch map carries the vertex ids
// of the dangling cells keyed by corner Morton, so the import can reconnect
// new cells to the surviving ones.
func (m *Mesh) deleteCells(deleted []deleteInfo) map[uint64]int64 {
	deadCells := map[int64]struct{}{}
	for _, info := range deleted {
		deadCells[info.cellID] = struct{}{}
	}

	deadVertices := map[int64]struct{}{}
	deadInterfaces := map[int64]struct{}{}
	danglingCells := map[int64]struct{}{}
	for cellID := range deadCells {
		c, ok := m.cells.Get(cellID)
		if !ok {
			continue
		}

		// All cell vertices are candidates for removal; the ones reachable
		// from dangling cells are reclaimed below.
		for k := 0; k < c.VertexCount(); k++ {
			deadVertices[c.Vertex(k)] = struct{}{}
		}

		// All interfaces of a dead cell die with it. A surviving cell on
		// the other side becomes dangling and its runs are scrubbed.
		for _, ifaceID := range c.AllInterfaces() {
			if _, seen := deadInterfaces[ifaceID]; seen {
				continue
			}
			iface, ok := m.interfaces.Get(ifaceID)
			if !ok {
				continue
			}

			danglingSide := -1
			if !iface.IsBorder() {
				if _, dead := deadCells[iface.Owner()]; !dead {
					danglingSide = 0
				} else if _, dead := deadCells[iface.Neigh()]; !dead {
					danglingSide = 1
				}
			}
			if danglingSide >= 0 {
				var danglingCellID, danglingNeighID int64
				var danglingFace int
				if danglingSide == 0 {
					danglingCellID = iface.Owner()
					danglingNeighID = iface.Neigh()
					danglingFace = iface.OwnerFace()
				} else {
					danglingCellID = iface.Neigh()
					danglingNeighID = iface.Owner()
					danglingFace = iface.NeighFace()
				}

				dangling, _ := m.cells.Get(danglingCellID)
				danglingCells[danglingCellID] = struct{}{}
				dangling.DeleteInterface(danglingFace, ifaceID)
				dangling.DeleteAdjacency(danglingFace, danglingNeighID)
			}

			deadInterfaces[ifaceID] = struct{}{}
		}

		m.cells.Erase(cellID)
	}
	m.cells.Flush()

	for ifaceID := range deadInterfaces {
		m.interfaces.Erase(ifaceID)
	}
	m.interfaces.Flush()

	// Every vertex of a dangling cell survives, not only the ones on the
	// dangling faces: corner vertices shared through edges must be kept as
	// well. Their Morton keys seed the stitch map used by the import.
	stitch := map[uint64]int64{}
	interfaceVertices := m.interfaceTypeInfo.NVertices
	for cellID := range danglingCells {
		c, _ := m.cells.Get(cellID)
		ref, err := m.cellOctant(cellID)
		if err != nil {
			continue
		}
		oct := m.octant(ref)
		for k := 0; k < c.VertexCount(); k++ {
			vertexID := c.Vertex(k)
			stitch[m.tree.GetNodeMorton(oct, k)] = vertexID
			delete(deadVertices, vertexID)
		}

		// Vertices of the remaining interfaces of the cell are reclaimed
		// through their owner's face connectivity.
		for _, ifaceID := range c.AllInterfaces() {
			iface, _ := m.interfaces.Get(ifaceID)
			if iface.IsBorder() {
				continue
			}
			ownerCell, _ := m.cells.Get(iface.Owner())
			ownerRef, err := m.cellOctant(iface.Owner())
			if err != nil {
				continue
			}
			ownerOct := m.octant(ownerRef)
			localConnect := m.cellTypeInfo.FaceConnect[iface.OwnerFace()]
			for k := 0; k < interfaceVertices; k++ {
				vertexID := ownerCell.Vertex(localConnect[k])
				stitch[m.tree.GetNodeMorton(ownerOct, localConnect[k])] = vertexID
				delete(deadVertices, vertexID)
			}
		}
	}

	for vertexID := range deadVertices {
		m.vertices.Erase(vertexID)
	}
	m.vertices.Flush()

	// The import reconnects both the new cells and the dangling ones.
	m.pendingDangling = danglingCells
	return stitch
}

// importCells creates the cells of the added octants, stitching their
// corner vertices through the Morton-keyed stitch map, and rebuilds the
// adjacencies and interfaces of the new cells together with the dangling
// cells left by the deletion pass.
func (m *Mesh) importCells(added []octantRef, stitch map[uint64]int64) []int64 {
	nCellVertices := m.cellTypeInfo.NVertices

	for _, ref := range added {
		oct := m.octant(ref)
		for k := 0; k < nCellVertices; k++ {
			key := m.tree.GetNodeMorton(oct, k)
			if _, ok := stitch[key]; ok {
				continue
			}
			vertexID := m.nextVertexID
			m.nextVertexID++
			if err := m.vertices.InsertWithID(vertexID, Vertex{id: vertexID, coords: m.tree.GetNode(oct, k)}); err != nil {
				panic(err)
			}
			stitch[key] = vertexID
		}
	}

	createdCells := make([]int64, 0, len(added))
	for _, ref := range added {
		cellID := m.octantCell(ref)
		oct := m.octant(ref)

		connect := make([]int64, nCellVertices)
		for k := 0; k < nCellVertices; k++ {
			connect[k] = stitch[m.tree.GetNodeMorton(oct, k)]
		}

		cell := NewCell(cellID, m.cellTypeInfo.Type, ref.internal, connect)
		if err := m.cells.InsertWithID(cellID, cell); err != nil {
			panic(err)
		}
		if !ref.internal {
			m.ghostRanks[cellID] = m.tree.GhostOwnerRank(ref.idx)
		}
		createdCells = append(createdCells, cellID)
	}

	// Dangling cells expose open faces that the new cells connect to, so
	// both groups are rebuilt together.
	rebuilt := append([]int64{}, createdCells...)
	for cellID := range m.pendingDangling {
		rebuilt = append(rebuilt, cellID)
	}
	m.pendingDangling = nil

	m.updateAdjacencies(rebuilt)
	m.updateInterfaces(rebuilt)

	return createdCells
}

// updateAdjacencies queries the octree for the face neighbours of the given
// cells and records them symmetrically. Cells are processed by increasing
// tree level so the finer side drives hanging-face handling.
func (m *Mesh) updateAdjacencies(cellIDs []int64) {
	ordered := m.sortByLevel(cellIDs)

	nFaces := octree.NumFaces(m.dim)
	for _, cellID := range ordered {
		c, ok := m.cells.Get(cellID)
		if !ok {
			continue
		}
		ref, err := m.cellOctant(cellID)
		if err != nil {
			continue
		}
		for face := 0; face < nFaces; face++ {
			var neighIdxs []uint32
			var neighGhosts []bool
			if ref.internal {
				neighIdxs, neighGhosts = m.tree.FindNeighbours(ref.idx, face, 1)
			} else {
				neighIdxs, neighGhosts = m.tree.FindGhostNeighbours(ref.idx, face, 1)
			}
			for k, neighIdx := range neighIdxs {
				neighID := m.octantCell(octantRef{idx: neighIdx, internal: !neighGhosts[k]})
				if neighID == NullID {
					continue
				}
				c.PushAdjacency(face, neighID)
				neigh, ok := m.cells.Get(neighID)
				if !ok {
					continue
				}
				neigh.PushAdjacency(octree.OppositeFace(face), cellID)
			}
		}
	}
}

// updateInterfaces creates the missing interfaces on the faces of the given
// cells: one per adjacent pair, owned by the finer cell or by the lower id
// on conforming faces, plus a border interface on every empty face.
func (m *Mesh) updateInterfaces(cellIDs []int64) {
	nFaces := octree.NumFaces(m.dim)
	for _, cellID := range m.sortByLevel(cellIDs) {
		c, ok := m.cells.Get(cellID)
		if !ok {
			continue
		}
		level := m.mustCellLevel(cellID)
		for face := 0; face < nFaces; face++ {
			if c.AdjacencyCount(face) == 0 {
				if c.InterfaceCount(face) == 0 {
					m.createInterface(cellID, face, NullID, -1)
				}
				continue
			}
			for _, neighID := range append([]int64{}, c.Adjacencies(face)...) {
				if m.interfaceBetween(c, face, neighID) {
					continue
				}
				neighLevel := m.mustCellLevel(neighID)
				ownerID, ownerFace := cellID, face
				neighSide, neighFace := neighID, octree.OppositeFace(face)
				if neighLevel > level || (neighLevel == level && neighID < cellID) {
					ownerID, ownerFace = neighID, octree.OppositeFace(face)
					neighSide, neighFace = cellID, face
				}
				m.createInterface(ownerID, ownerFace, neighSide, neighFace)
			}
		}
	}
}

// interfaceBetween reports whether the cell already links an interface to
// the given neighbour on the given face.
func (m *Mesh) interfaceBetween(c *Cell, face int, neighID int64) bool {
	for _, ifaceID := range c.Interfaces(face) {
		iface, ok := m.interfaces.Get(ifaceID)
		if !ok {
			continue
		}
		if (iface.Owner() == c.ID() && iface.Neigh() == neighID) ||
			(iface.Owner() == neighID && iface.Neigh() == c.ID()) {
			return true
		}
	}
	return false
}

// createInterface builds an interface owned by the given cell face and links
// it on both sides. A NullID neighbour marks a border.
func (m *Mesh) createInterface(ownerID int64, ownerFace int, neighID int64, neighFace int) int64 {
	owner, _ := m.cells.Get(ownerID)

	localConnect := m.cellTypeInfo.FaceConnect[ownerFace]
	connect := make([]int64, len(localConnect))
	for k, v := range localConnect {
		connect[k] = owner.Vertex(v)
	}

	ifaceID := m.nextInterfaceID
	m.nextInterfaceID++
	iface := Interface{
		id:        ifaceID,
		itype:     m.cellTypeInfo.FaceTypes[ownerFace],
		connect:   connect,
		owner:     ownerID,
		ownerFace: ownerFace,
		neigh:     neighID,
		neighFace: neighFace,
	}
	if err := m.interfaces.InsertWithID(ifaceID, iface); err != nil {
		panic(err)
	}

	owner.PushInterface(ownerFace, ifaceID)
	if neighID != NullID {
		neigh, _ := m.cells.Get(neighID)
		neigh.PushInterface(neighFace, ifaceID)
	}
	return ifaceID
}

// mustCellLevel returns the level of a cell known to exist.
func (m *Mesh) mustCellLevel(id int64) int {
	ref, err := m.cellOctant(id)
	if err != nil {
		return 0
	}
	return m.octant(ref).Level()
}

// sortByLevel orders cell ids by increasing tree level, breaking ties by id.
func (m *Mesh) sortByLevel(cellIDs []int64) []int64 {
	ordered := append([]int64{}, cellIDs...)
	sort.Slice(ordered, func(a, b int) bool {
		la := m.mustCellLevel(ordered[a])
		lb := m.mustCellLevel(ordered[b])
		if la != lb {
			return la < lb
		}
		return ordered[a] < ordered[b]
	})
	return ordered
}

// buildGhostExchangeData rebuilds the per-rank send and receive cell lists
// used during field transfer. Both sides list the cells in Morton order, so
// the exchanged payloads line up without extra metadata.
func (m *Mesh) buildGhostExchangeData() {
	m.exchangeSources = map[int][]int64{}
	m.exchangeTargets = map[int][]int64{}
	if m.tree.NumGhosts() == 0 {
		return
	}

	for g := uint32(0); g < uint32(m.tree.NumGhosts()); g++ {
		cellID, ok := m.ghostToCell[g]
		if !ok {
			continue
		}
		rank := m.tree.GhostOwnerRank(g)
		m.exchangeTargets[rank] = append(m.exchangeTargets[rank], cellID)
	}

	seen := map[int]map[int64]struct{}{}
	for idx := uint32(0); idx < uint32(m.tree.NumOctants()); idx++ {
		cellID, ok := m.octantToCell[idx]
		if !ok {
			continue
		}
		for codim := 1; codim <= m.dim; codim++ {
			for entity := 0; entity < m.entityCount(codim); entity++ {
				neighIdxs, neighGhosts := m.tree.FindNeighbours(idx, entity, codim)
				for k, neighIdx := range neighIdxs {
					if !neighGhosts[k] {
						continue
					}
					rank := m.tree.GhostOwnerRank(neighIdx)
					if seen[rank] == nil {
						seen[rank] = map[int64]struct{}{}
					}
					if _, dup := seen[rank][cellID]; dup {
						continue
					}
					seen[rank][cellID] = struct{}{}
					m.exchangeSources[rank] = append(m.exchangeSources[rank], cellID)
				}
			}
		}
	}
}

// entityCount returns the number of entities of the given codimension.
func (m *Mesh) entityCount(codim int) int {
	switch {
	case codim == 1:
		return octree.NumFaces(m.dim)
	case codim == 2 && m.dim == 3:
		return octree.NumEdges(m.dim)
	default:
		return octree.NumNodes(m.dim)
	}
}
