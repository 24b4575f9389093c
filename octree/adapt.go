package octree

// Mapping is the table relating every post-adaption tree index to the
// pre-adaption octants it replaces: one entry for plain renumbering, 2^dim
// entries for a coarsening merge, a single parent entry for every child of a
// refinement, no entries for purely received octants. The parallel ghost and
// rank vectors record where each pre-adaption octant lived.
type Mapping struct {
	srcs  [][]uint32
	ghost [][]bool
	ranks [][]int
	newR  []bool
	newC  []bool
}

func newIdentityMapping(n, rank int) *Mapping {
	m := &Mapping{
		srcs:  make([][]uint32, n),
		ghost: make([][]bool, n),
		ranks: make([][]int, n),
		newR:  make([]bool, n),
		newC:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		m.srcs[i] = []uint32{uint32(i)}
		m.ghost[i] = []bool{false}
		m.ranks[i] = []int{rank}
	}
	return m
}

// GetMapping returns the pre-adaption tree indices corresponding to the
// post-adaption index idx, with parallel ghost flags and owner ranks.
func (t *Tree) GetMapping(idx uint32) ([]uint32, []bool, []int) {
	m := t.mapping
	return m.srcs[idx], m.ghost[idx], m.ranks[idx]
}

// IsNewR reports whether the octant at the post-adaption index was produced
// by refining a pre-existing octant.
func (t *Tree) IsNewR(idx uint32) bool { return t.mapping.newR[idx] }

// IsNewC reports whether the octant at the post-adaption index was produced
// by a coarsening merge.
func (t *Tree) IsNewC(idx uint32) bool { return t.mapping.newC[idx] }

// SentRanges describes, per destination rank, which pre-rebalance local
// indices the last LoadBalance sent away, as up to two half-open ranges
// [b0, e0) and [b1, e1).
func (t *Tree) SentRanges() map[int][4]uint32 {
	return t.sentRanges
}

// Adapt performs one adaption step: markers greater than one are expanded
// into successive single-level refinements, complete sibling families
// marked for coarsening are merged, and the 2:1 constraint is restored by
// refining the coarser side. It returns whether the local tree changed.
// When buildMapping is set the mapping table is produced; otherwise a later
// mesh synchronisation of a non-empty mesh is impossible.
func (t *Tree) Adapt(buildMapping bool) (bool, error) {
	var m *Mapping
	if buildMapping {
		m = newIdentityMapping(len(t.octants), t.comm.Rank())
	}

	changed := false
	for t.refineStep(m) {
		changed = true
	}
	for t.coarsenStep(m) {
		changed = true
	}
	balanced, err := t.balanceToFixpoint(m, changed)
	if err != nil {
		return false, err
	}
	changed = changed || balanced

	// Coarsening markers that could not be applied are dropped, as are
	// refinement markers stranded at the maximum level.
	for i := range t.octants {
		if t.octants[i].Mark < 0 || t.octants[i].Lev >= t.maxLevel {
			t.octants[i].Mark = 0
		}
	}

	t.mapping = m
	t.sentRanges = nil
	if buildMapping {
		t.lastOp = OpAdaptionMapped
	} else {
		t.lastOp = OpAdaptionUnmapped
	}

	if err := t.refreshPartition(); err != nil {
		return false, err
	}
	if err := t.buildGhostLayer(); err != nil {
		return false, err
	}

	anyChanged, err := t.anyRankChanged(changed)
	if err != nil {
		return false, err
	}
	if changed {
		t.logger.Debugf("adapted tree, %d octants", len(t.octants))
	}
	return anyChanged, nil
}

// refineStep splits every octant with a positive marker one level down and
// reports whether anything was refined.
func (t *Tree) refineStep(m *Mapping) bool {
	refined := false
	for i := range t.octants {
		if t.octants[i].Mark > 0 && t.octants[i].Lev < t.maxLevel {
			refined = true
			break
		}
	}
	if !refined {
		return false
	}

	nc := NumChildren(t.dim)
	next := make([]Octant, 0, len(t.octants)+nc)
	var nm *Mapping
	if m != nil {
		nm = &Mapping{}
	}
	for i := range t.octants {
		o := t.octants[i]
		if o.Mark <= 0 || o.Lev >= t.maxLevel {
			if o.Mark > 0 {
				// Cannot refine past the maximum level.
				o.Mark = 0
			}
			next = append(next, o)
			if m != nil {
				nm.appendFrom(m, i, m.newR[i], m.newC[i])
			}
			continue
		}
		for _, child := range o.children(t.dim, t.maxLevel) {
			child.Mark = o.Mark - 1
			next = append(next, child)
			if m != nil {
				nm.appendFrom(m, i, true, false)
			}
		}
	}
	t.octants = next
	if m != nil {
		*m = *nm
	}
	return true
}

// coarsenStep merges every complete sibling family marked for coarsening
// whose merge keeps the tree balanced, and reports whether anything was
// merged.
func (t *Tree) coarsenStep(m *Mapping) bool {
	nc := NumChildren(t.dim)
	merged := false

	next := make([]Octant, 0, len(t.octants))
	var nm *Mapping
	if m != nil {
		nm = &Mapping{}
	}
	for i := 0; i < len(t.octants); {
		if family, ok := t.familyAt(i); ok && t.coarseningKeepsBalance(family) {
			parent := t.mergeFamily(i)
			next = append(next, parent)
			if m != nil {
				nm.appendMerged(m, i, nc)
			}
			i += nc
			merged = true
			continue
		}
		next = append(next, t.octants[i])
		if m != nil {
			nm.appendFrom(m, i, m.newR[i], m.newC[i])
		}
		i++
	}
	t.octants = next
	if m != nil {
		*m = *nm
	}
	return merged
}

// familyAt reports whether a complete sibling family marked for coarsening
// starts at position i, and returns its prospective parent.
func (t *Tree) familyAt(i int) (Octant, bool) {
	nc := NumChildren(t.dim)
	if i+nc > len(t.octants) {
		return Octant{}, false
	}
	first := t.octants[i]
	if first.Lev == 0 || first.Mark >= 0 {
		return Octant{}, false
	}
	half := first.logicalSize(t.maxLevel)
	parent := Octant{
		X:   first.X &^ (2*half - 1),
		Y:   first.Y &^ (2*half - 1),
		Z:   first.Z &^ (2*half - 1),
		Lev: first.Lev - 1,
	}
	for k := 0; k < nc; k++ {
		o := t.octants[i+k]
		if o.Lev != first.Lev || o.Mark >= 0 {
			return Octant{}, false
		}
		dx, dy, dz := childOffset(t.dim, k)
		if o.X != parent.X+dx*half || o.Y != parent.Y+dy*half || o.Z != parent.Z+dz*half {
			return Octant{}, false
		}
	}
	return parent, true
}

// coarseningKeepsBalance checks that merging a family does not leave a
// balance-enabled neighbour more than one level finer than the parent.
func (t *Tree) coarseningKeepsBalance(parent Octant) bool {
	for codim := 1; codim <= t.dim; codim++ {
		n := t.entityCount(codim)
		for entity := 0; entity < n; entity++ {
			shift := entityShift(t.dim, entity, codim)
			region, ok := t.neighbourRegion(&parent, shift)
			if !ok {
				continue
			}
			for _, idx := range t.collectRegion(t.octants, region, &parent, shift) {
				if t.octants[idx].Bal && int(t.octants[idx].Lev) > int(parent.Lev)+1 {
					return false
				}
			}
			for _, idx := range t.collectRegion(t.ghosts, region, &parent, shift) {
				if t.ghosts[idx].Bal && int(t.ghosts[idx].Lev) > int(parent.Lev)+1 {
					return false
				}
			}
		}
	}
	return true
}

// mergeFamily replaces the family starting at i by its parent, moving the
// coarsening markers one step toward zero.
func (t *Tree) mergeFamily(i int) Octant {
	nc := NumChildren(t.dim)
	first := t.octants[i]
	half := first.logicalSize(t.maxLevel)

	parent := Octant{
		X:   first.X &^ (2*half - 1),
		Y:   first.Y &^ (2*half - 1),
		Z:   first.Z &^ (2*half - 1),
		Lev: first.Lev - 1,
	}
	marker := int8(-127)
	for k := 0; k < nc; k++ {
		o := t.octants[i+k]
		if o.Mark+1 > marker {
			marker = o.Mark + 1
		}
		parent.Bal = parent.Bal || o.Bal
	}
	parent.Mark = marker
	return parent
}

// entityCount returns the number of entities of the given codimension.
func (t *Tree) entityCount(codim int) int {
	switch {
	case codim == 1:
		return NumFaces(t.dim)
	case codim == 2 && t.dim == 3:
		return NumEdges(t.dim)
	default:
		return NumNodes(t.dim)
	}
}

// balanceToFixpoint refines balance-enabled octants adjacent to much finer
// balance-enabled neighbours until the 2:1 constraint holds globally. The
// treeChanged flag forces a second round so that ranks whose neighbours
// refined or coarsened re-check against a fresh ghost layer.
func (t *Tree) balanceToFixpoint(m *Mapping, treeChanged bool) (bool, error) {
	changed := false
	carry := treeChanged
	for {
		localChanged := false
		for t.balanceStep(m) {
			localChanged = true
		}
		if err := t.refreshPartition(); err != nil {
			return false, err
		}
		if err := t.buildGhostLayer(); err != nil {
			return false, err
		}
		anyChanged, err := t.anyRankChanged(localChanged || carry)
		if err != nil {
			return false, err
		}
		carry = false
		changed = changed || localChanged
		if !anyChanged {
			return changed, nil
		}
		if t.comm.Size() == 1 {
			return changed, nil
		}
	}
}

// balanceStep refines every balance-enabled octant with a face, edge or
// vertex neighbour more than one level finer, and reports whether anything
// was refined.
func (t *Tree) balanceStep(m *Mapping) bool {
	var toRefine []uint32
	for i := range t.octants {
		if !t.octants[i].Bal {
			continue
		}
		if t.violatesBalance(&t.octants[i]) {
			toRefine = append(toRefine, uint32(i))
		}
	}
	if len(toRefine) == 0 {
		return false
	}
	for _, idx := range toRefine {
		t.octants[idx].Mark = 1
	}
	return t.refineStep(m)
}

func (t *Tree) violatesBalance(o *Octant) bool {
	for codim := 1; codim <= t.dim; codim++ {
		n := t.entityCount(codim)
		for entity := 0; entity < n; entity++ {
			ids, ghostFlags := t.findNeighboursOf(o, entity, codim)
			for k, idx := range ids {
				var neigh *Octant
				if ghostFlags[k] {
					neigh = &t.ghosts[idx]
				} else {
					neigh = &t.octants[idx]
				}
				if neigh.Bal && int(neigh.Lev) > int(o.Lev)+1 {
					return true
				}
			}
		}
	}
	return false
}

// anyRankChanged reduces a local change flag across the communicator.
func (t *Tree) anyRankChanged(changed bool) (bool, error) {
	v := uint64(0)
	if changed {
		v = 1
	}
	all, err := t.comm.AllGatherUint64(v)
	if err != nil {
		return false, err
	}
	for _, f := range all {
		if f != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mapping) appendFrom(src *Mapping, i int, newR, newC bool) {
	m.srcs = append(m.srcs, src.srcs[i])
	m.ghost = append(m.ghost, src.ghost[i])
	m.ranks = append(m.ranks, src.ranks[i])
	m.newR = append(m.newR, newR)
	m.newC = append(m.newC, newC)
}

func (m *Mapping) appendMerged(src *Mapping, i, n int) {
	var srcs []uint32
	var ghost []bool
	var ranks []int
	for k := 0; k < n; k++ {
		srcs = append(srcs, src.srcs[i+k]...)
		ghost = append(ghost, src.ghost[i+k]...)
		ranks = append(ranks, src.ranks[i+k]...)
	}
	m.srcs = append(m.srcs, srcs)
	m.ghost = append(m.ghost, ghost)
	m.ranks = append(m.ranks, ranks)
	m.newR = append(m.newR, false)
	m.newC = append(m.newC, true)
}
