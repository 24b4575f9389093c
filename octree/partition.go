package octree

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// refreshPartition updates the per-rank octant counts and Morton boundaries
// after the local arrays changed.
func (t *Tree) refreshPartition() error {
	counts, err := t.comm.AllGatherUint64(uint64(len(t.octants)))
	if err != nil {
		return errors.Wrap(ErrPartition, err.Error())
	}
	t.counts = counts

	last := uint64(0)
	if n := len(t.octants); n > 0 {
		last = t.octants[n-1].lastDescendantMorton(t.dim, t.maxLevel)
	}
	lasts, err := t.comm.AllGatherUint64(last)
	if err != nil {
		return errors.Wrap(ErrPartition, err.Error())
	}

	// Ranks without octants inherit the boundary of the previous rank so
	// that owner lookups stay monotone.
	prev := uint64(0)
	for r := range lasts {
		if counts[r] == 0 {
			lasts[r] = prev
		} else {
			prev = lasts[r]
		}
	}
	// The last non-empty rank closes the domain.
	for r := len(lasts) - 1; r >= 0; r-- {
		if counts[r] != 0 {
			break
		}
		lasts[r] = t.maxMorton()
	}
	if len(lasts) > 0 {
		lasts[len(lasts)-1] = t.maxMorton()
	}
	t.partitionLast = lasts
	return nil
}

// buildGhostLayer rebuilds the ghost octant array: every rank sends each of
// its border octants to the ranks owning an adjacent region, and stores what
// it receives sorted by Morton.
func (t *Tree) buildGhostLayer() error {
	if t.comm.Size() == 1 {
		t.ghosts = nil
		return nil
	}

	out := make(map[int][]Octant)
	for i := range t.octants {
		for _, r := range t.adjacentRanks(&t.octants[i]) {
			out[r] = append(out[r], t.octants[i])
		}
	}

	recv, err := t.comm.ExchangeOctants(out)
	if err != nil {
		return errors.Wrap(ErrPartition, err.Error())
	}

	var ghosts []Octant
	for _, batch := range recv {
		ghosts = append(ghosts, batch...)
	}
	sort.Slice(ghosts, func(a, b int) bool {
		return ghosts[a].morton(t.dim) < ghosts[b].morton(t.dim)
	})
	t.ghosts = ghosts
	return nil
}

// adjacentRanks lists the remote ranks owning a region adjacent to the
// octant across any face, edge or vertex.
func (t *Tree) adjacentRanks(o *Octant) []int {
	self := t.comm.Rank()
	seen := make(map[int]struct{})
	for codim := 1; codim <= t.dim; codim++ {
		n := t.entityCount(codim)
		for entity := 0; entity < n; entity++ {
			shift := entityShift(t.dim, entity, codim)
			region, ok := t.neighbourRegion(o, shift)
			if !ok {
				continue
			}
			mlow := region.morton(t.dim)
			mhigh := region.lastDescendantMorton(t.dim, t.maxLevel)
			first := t.OwnerRank(mlow)
			lastRank := t.OwnerRank(mhigh)
			for r := first; r <= lastRank; r++ {
				if r != self {
					seen[r] = struct{}{}
				}
			}
		}
	}
	ranks := make([]int, 0, len(seen))
	for r := range seen {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	return ranks
}

// LoadBalance redistributes the octants so that every rank owns a contiguous
// Morton range whose weight approximates an equal share of the total. A nil
// weight slice weighs every octant equally. The returned map lists, per
// destination rank, the pre-rebalance local index ranges that were sent
// away; the same map stays available through SentRanges until the next
// adaption.
func (t *Tree) LoadBalance(weights []float64) (map[int][4]uint32, error) {
	rank := t.comm.Rank()
	size := t.comm.Size()

	if weights != nil && len(weights) != len(t.octants) {
		return nil, errors.Errorf("got %d weights for %d octants", len(weights), len(t.octants))
	}
	local := weights
	if local == nil {
		local = make([]float64, len(t.octants))
		for i := range local {
			local[i] = 1
		}
	}

	if size == 1 {
		t.mapping = newIdentityMapping(len(t.octants), rank)
		t.sentRanges = map[int][4]uint32{}
		t.lastOp = OpLoadBalance
		return t.sentRanges, nil
	}

	gathered, err := t.comm.AllGatherFloat64s(local)
	if err != nil {
		return nil, errors.Wrap(ErrPartition, err.Error())
	}

	// Global weight prefix and the global range currently owned locally.
	var all []float64
	offset := 0
	for r, w := range gathered {
		if r < rank {
			offset += len(w)
		}
		all = append(all, w...)
	}
	nGlobal := len(all)
	prefix := make([]float64, nGlobal)
	floats.CumSum(prefix, all)
	total := 0.0
	if nGlobal > 0 {
		total = prefix[nGlobal-1]
	}
	ideal := total / float64(size)

	owner := func(g int) int {
		if ideal == 0 {
			return g * size / max(nGlobal, 1)
		}
		before := 0.0
		if g > 0 {
			before = prefix[g-1]
		}
		r := int((before + all[g]/2) / ideal)
		if r >= size {
			r = size - 1
		}
		return r
	}

	// Split the local range by destination and exchange.
	prevOctants := t.octants
	out := make(map[int][]Octant)
	sent := make(map[int][4]uint32)
	var kept []Octant
	var keptIdx []uint32
	for i := range prevOctants {
		dest := owner(offset + i)
		if dest == rank {
			kept = append(kept, prevOctants[i])
			keptIdx = append(keptIdx, uint32(i))
			continue
		}
		out[dest] = append(out[dest], prevOctants[i])
		ranges := sent[dest]
		if ranges[1] == ranges[0] {
			ranges[0] = uint32(i)
			ranges[1] = uint32(i + 1)
		} else if ranges[1] == uint32(i) {
			ranges[1] = uint32(i + 1)
		} else if ranges[3] == ranges[2] {
			ranges[2] = uint32(i)
			ranges[3] = uint32(i + 1)
		} else {
			ranges[3] = uint32(i + 1)
		}
		sent[dest] = ranges
	}

	recv, err := t.comm.ExchangeOctants(out)
	if err != nil {
		return nil, errors.Wrap(ErrPartition, err.Error())
	}

	type tagged struct {
		oct     Octant
		srcRank int
		srcIdx  uint32
	}
	var merged []tagged
	for k, o := range kept {
		merged = append(merged, tagged{oct: o, srcRank: rank, srcIdx: keptIdx[k]})
	}
	for srcRank, batch := range recv {
		for k, o := range batch {
			merged = append(merged, tagged{oct: o, srcRank: srcRank, srcIdx: uint32(k)})
		}
	}
	sort.Slice(merged, func(a, b int) bool {
		return merged[a].oct.morton(t.dim) < merged[b].oct.morton(t.dim)
	})

	t.octants = make([]Octant, len(merged))
	m := &Mapping{
		srcs:  make([][]uint32, len(merged)),
		ghost: make([][]bool, len(merged)),
		ranks: make([][]int, len(merged)),
		newR:  make([]bool, len(merged)),
		newC:  make([]bool, len(merged)),
	}
	for i, item := range merged {
		t.octants[i] = item.oct
		if item.srcRank == rank {
			m.srcs[i] = []uint32{item.srcIdx}
		}
		m.ghost[i] = []bool{false}
		m.ranks[i] = []int{item.srcRank}
	}
	t.mapping = m
	t.sentRanges = sent
	t.lastOp = OpLoadBalance

	if err := t.refreshPartition(); err != nil {
		return nil, err
	}
	if err := t.buildGhostLayer(); err != nil {
		return nil, err
	}

	t.logger.Debugf("load balanced, %d local octants", len(t.octants))
	return sent, nil
}
