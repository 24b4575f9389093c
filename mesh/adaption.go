package mesh

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/LucaVerzeroliUnibg/bitpit/octree"
)

// UpdateAdaption applies the pending refinement and coarsening markers to
// the octree and reconciles the mesh with the result. With track set the
// returned events describe every change precisely enough for field
// transfer; an empty list means nothing changed.
func (m *Mesh) UpdateAdaption(track bool) ([]AdaptionEvent, error) {
	buildMapping := m.CellCount() != 0

	m.logger.Debug("adapting tree")
	changed, err := m.tree.Adapt(buildMapping)
	if err != nil {
		return nil, err
	}
	if !changed && m.CellCount() != 0 {
		return nil, nil
	}
	return m.sync(track)
}

// LoadBalance redistributes the cells across the ranks so that every rank
// carries an approximately equal weight, rebuilding the ghost layer, and
// reconciles the mesh. A nil weight slice weighs every cell equally; the
// weights follow the internal octant order.
func (m *Mesh) LoadBalance(weights []float64, track bool) ([]AdaptionEvent, error) {
	if _, err := m.tree.LoadBalance(weights); err != nil {
		return nil, err
	}
	return m.sync(track)
}

// renumberInfo records a surviving cell whose octant moved to a new tree
// index.
type renumberInfo struct {
	cellID int64
	newIdx uint32
}

// deleteInfo records a cell to delete and the adaption that killed it.
type deleteInfo struct {
	cellID  int64
	trigger EventType
	rank    int
}

// sync diff-reconciles the mesh against the post-adaption octree: it
// classifies every octant, rewrites the cell-to-octant maps, deletes dead
// cells, imports new ones, reconnects adjacencies and interfaces, and
// rebuilds the ghost exchange tables.
func (m *Mesh) sync(track bool) ([]AdaptionEvent, error) {
	m.logger.Debug("syncing mesh")

	importAll := m.CellCount() == 0
	lastOp := m.tree.LastOperation()
	if lastOp == octree.OpAdaptionUnmapped && !importAll {
		return nil, errors.Wrap(ErrInconsistentState, "cannot sync after an unmapped adaption")
	}

	nOctants := uint32(m.tree.NumOctants())
	nGhosts := uint32(m.tree.NumGhosts())
	nPrevOctants := len(m.octantToCell)
	rank := m.tree.Rank()

	events := newEventCollection()
	unmapped := make([]bool, nPrevOctants)
	for i := range unmapped {
		unmapped[i] = true
	}

	var added []octantRef
	var renumbered []renumberInfo
	var deleted []deleteInfo

	const evNone = EventType(-1)

	treeIdx := uint32(0)
	for treeIdx < nOctants {
		var srcs []uint32
		var ghostFlags []bool
		var srcRanks []int
		if !importAll {
			srcs, ghostFlags, srcRanks = m.tree.GetMapping(treeIdx)
		}

		evType := evNone
		switch {
		case importAll:
			evType = EventCreation
		case lastOp == octree.OpAdaptionMapped:
			if m.tree.IsNewR(treeIdx) {
				evType = EventRefinement
			} else if m.tree.IsNewC(treeIdx) {
				evType = EventCoarsening
			} else if treeIdx != srcs[0] {
				evType = EventRenumbering
			}
		case lastOp == octree.OpLoadBalance:
			if srcRanks[0] != rank {
				evType = EventPartitionRecv
			} else if treeIdx != srcs[0] {
				evType = EventRenumbering
			}
		}

		if evType == evNone {
			unmapped[treeIdx] = false
			treeIdx++
			continue
		}

		if evType == EventRenumbering {
			prevIdx := srcs[0]
			cellID := m.octantCell(octantRef{idx: prevIdx, internal: !ghostFlags[0]})
			renumbered = append(renumbered, renumberInfo{cellID: cellID, newIdx: treeIdx})
			unmapped[prevIdx] = false
			if track {
				idx := events.create(EventRenumbering, EntityCell, rank)
				ev := events.at(idx)
				ev.Previous = append(ev.Previous, cellID)
				ev.Current = append(ev.Current, cellID)
			}
			treeIdx++
			continue
		}

		// New octants are imported, cells of previous octants are removed.
		var nCurrent uint32
		switch {
		case importAll:
			nCurrent = nOctants - treeIdx
		case evType == EventRefinement:
			nCurrent = uint32(octree.NumChildren(m.dim))
		default:
			nCurrent = 1
		}
		for k := treeIdx; k < treeIdx+nCurrent; k++ {
			added = append(added, octantRef{idx: k, internal: true})
		}

		var previousIDs []int64
		for k := range srcs {
			if srcRanks[k] != rank {
				continue
			}
			prevIdx := srcs[k]
			prevRef := octantRef{idx: prevIdx, internal: !ghostFlags[k]}
			cellID := m.octantCell(prevRef)
			deleted = append(deleted, deleteInfo{cellID: cellID, trigger: evType, rank: rank})
			if prevRef.internal {
				unmapped[prevIdx] = false
			}
			previousIDs = append(previousIDs, cellID)
		}

		if track {
			evRank := rank
			if evType == EventPartitionRecv {
				evRank = srcRanks[0]
			}
			idx := events.create(evType, EntityCell, evRank)
			ev := events.at(idx)
			for k := treeIdx; k < treeIdx+nCurrent; k++ {
				events.addPendingCurrent(idx, k)
			}
			ev.Previous = append(ev.Previous, previousIDs...)
		}

		treeIdx += nCurrent
	}

	// Cells sent to other ranks by the load balance are deleted here; their
	// previous ids follow the pre-rebalance tree order, matching the order
	// the receiver will use.
	for destRank, ranges := range m.tree.SentRanges() {
		for pair := 0; pair < 2; pair++ {
			for prevIdx := ranges[2*pair]; prevIdx < ranges[2*pair+1]; prevIdx++ {
				cellID := m.octantCell(octantRef{idx: prevIdx, internal: true})
				deleted = append(deleted, deleteInfo{cellID: cellID, trigger: EventPartitionSend, rank: destRank})
				unmapped[prevIdx] = false
			}
		}
	}

	// The previous ghost layer is dropped wholesale and rebuilt from the
	// post-adaption ghost octants.
	for _, cellID := range m.ghostCellIDs() {
		deleted = append(deleted, deleteInfo{cellID: cellID, trigger: EventDeletion, rank: rank})
	}
	for g := uint32(0); g < nGhosts; g++ {
		added = append(added, octantRef{idx: g, internal: false})
	}

	// Previous local octants that no post-adaption octant maps back to are
	// plain deletions. The tree merges sibling families only within a rank.
	for prevIdx, um := range unmapped {
		if um {
			cellID := m.octantCell(octantRef{idx: uint32(prevIdx), internal: true})
			deleted = append(deleted, deleteInfo{cellID: cellID, trigger: EventDeletion, rank: rank})
		}
	}

	// Topology mutation: maps first, then deletion, then import.
	m.resetCellOctantMaps(deleted, renumbered, added)

	var stitch map[uint64]int64
	if len(deleted) > 0 {
		if track {
			m.trackDeletions(events, deleted)
		}
		stitch = m.deleteCells(deleted)
		m.logger.Debugf("removed %d cells", len(deleted))
	} else {
		stitch = map[uint64]int64{}
	}

	var createdCells []int64
	if len(added) > 0 || len(m.pendingDangling) > 0 {
		createdCells = m.importCells(added, stitch)
		m.logger.Debugf("imported %d cells", len(added))
	}

	m.buildGhostExchangeData()

	if !track {
		return nil, nil
	}

	// Ghost cells created by the sync.
	if nGhosts > 0 {
		idx := events.create(EventCreation, EntityCell, rank)
		ev := events.at(idx)
		for g := uint32(0); g < nGhosts; g++ {
			ev.Current = append(ev.Current, m.ghostToCell[g])
		}
	}

	// Interfaces created by the sync.
	if len(createdCells) > 0 {
		seen := map[int64]struct{}{}
		idx := events.create(EventCreation, EntityInterface, rank)
		ev := events.at(idx)
		for _, cellID := range createdCells {
			c, _ := m.cells.Get(cellID)
			for _, ifaceID := range c.AllInterfaces() {
				if _, dup := seen[ifaceID]; dup {
					continue
				}
				seen[ifaceID] = struct{}{}
				ev.Current = append(ev.Current, ifaceID)
			}
		}
	}

	return events.resolve(m.octantToCell), nil
}

// ghostCellIDs returns the ghost cell ids ordered by ghost octant index.
func (m *Mesh) ghostCellIDs() []int64 {
	idxs := make([]uint32, 0, len(m.ghostToCell))
	for idx := range m.ghostToCell {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(a, b int) bool { return idxs[a] < idxs[b] })
	ids := make([]int64, len(idxs))
	for k, idx := range idxs {
		ids[k] = m.ghostToCell[idx]
	}
	return ids
}

// trackDeletions records the deletion and partition-send events, and the
// deletion of every interface of the dead cells.
func (m *Mesh) trackDeletions(events *eventCollection, deleted []deleteInfo) {
	removedInterfaces := map[int64]struct{}{}
	for _, info := range deleted {
		if info.trigger == EventDeletion || info.trigger == EventPartitionSend {
			idx := events.create(info.trigger, EntityCell, info.rank)
			ev := events.at(idx)
			ev.Previous = append(ev.Previous, info.cellID)
		}

		c, ok := m.cells.Get(info.cellID)
		if !ok {
			continue
		}
		for _, ifaceID := range c.AllInterfaces() {
			removedInterfaces[ifaceID] = struct{}{}
		}
	}

	if len(removedInterfaces) > 0 {
		idx := events.create(EventDeletion, EntityInterface, m.tree.Rank())
		ev := events.at(idx)
		for _, ifaceID := range sortedIDs(removedInterfaces) {
			ev.Previous = append(ev.Previous, ifaceID)
		}
	}
}

// resetCellOctantMaps rewrites the cell-to-octant maps: entries of deleted
// and renumbered cells are dropped, renumbered cells point at their new tree
// indices, and fresh ids are generated for every added octant.
func (m *Mesh) resetCellOctantMaps(deleted []deleteInfo, renumbered []renumberInfo, added []octantRef) {
	for _, info := range deleted {
		c, ok := m.cells.Get(info.cellID)
		if !ok || !c.IsInterior() {
			continue
		}
		treeIdx := m.cellToOctant[info.cellID]
		delete(m.cellToOctant, info.cellID)
		delete(m.octantToCell, treeIdx)
	}

	m.cellToGhost = map[int64]uint32{}
	m.ghostToCell = map[uint32]int64{}
	m.ghostRanks = map[int64]int{}

	for _, info := range renumbered {
		c, ok := m.cells.Get(info.cellID)
		if !ok || !c.IsInterior() {
			continue
		}
		prevIdx := m.cellToOctant[info.cellID]
		delete(m.octantToCell, prevIdx)
	}
	for _, info := range renumbered {
		c, ok := m.cells.Get(info.cellID)
		if !ok || !c.IsInterior() {
			continue
		}
		m.cellToOctant[info.cellID] = info.newIdx
		m.octantToCell[info.newIdx] = info.cellID
	}

	for _, ref := range added {
		cellID := m.generateCellID()
		if ref.internal {
			m.cellToOctant[cellID] = ref.idx
			m.octantToCell[ref.idx] = cellID
		} else {
			m.cellToGhost[cellID] = ref.idx
			m.ghostToCell[ref.idx] = cellID
		}
	}
}

func (m *Mesh) generateCellID() int64 {
	id := m.nextCellID
	m.nextCellID++
	return id
}

// sortedIDs returns the keys of an id set in ascending order.
func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}
