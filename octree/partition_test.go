package octree

import (
	"sync"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// runRanks executes fn once per rank, each on its own goroutine, and waits
// for completion.
func runRanks(t *testing.T, size int, fn func(rank int, comm Communicator)) {
	t.Helper()
	comms := NewChannelCommunicators(size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			fn(rank, comms[rank])
		}(r)
	}
	wg.Wait()
}

func TestChannelCommunicatorAllGather(t *testing.T) {
	runRanks(t, 3, func(rank int, comm Communicator) {
		got, err := comm.AllGatherUint64(uint64(rank + 10))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, []uint64{10, 11, 12})
	})
}

func TestLoadBalanceDistributesOctants(t *testing.T) {
	logger := golog.NewTestLogger(t)
	runRanks(t, 2, func(rank int, comm Communicator) {
		tree, err := NewTree(2, r3.Vector{}, 1, DefaultMaxLevels, logger, comm)
		test.That(t, err, test.ShouldBeNil)

		// Rank 0 refines the root twice before any balancing, so it owns
		// all 16 octants.
		if rank == 0 {
			tree.SetMarker(0, 2)
		}
		_, err = tree.Adapt(false)
		test.That(t, err, test.ShouldBeNil)

		sent, err := tree.LoadBalance(nil)
		test.That(t, err, test.ShouldBeNil)

		test.That(t, tree.NumOctants(), test.ShouldEqual, 8)
		if rank == 0 {
			// The trailing half of the pre-rebalance range moved to rank 1.
			ranges, ok := sent[1]
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, ranges[0], test.ShouldEqual, uint32(8))
			test.That(t, ranges[1], test.ShouldEqual, uint32(16))
		} else {
			test.That(t, len(sent), test.ShouldEqual, 0)
		}

		// Internal octants are Morton-sorted and the rank ranges do not
		// overlap.
		for i := 1; i < tree.NumOctants(); i++ {
			test.That(t, tree.GetMorton(tree.Octant(uint32(i-1))),
				test.ShouldBeLessThan, tree.GetMorton(tree.Octant(uint32(i))))
		}
		last := tree.GetMorton(tree.Octant(uint32(tree.NumOctants()-1)))
		test.That(t, tree.OwnerRank(last), test.ShouldEqual, rank)

		// The ghost layer holds the neighbour octants across the partition
		// boundary.
		test.That(t, tree.NumGhosts(), test.ShouldBeGreaterThan, 0)
		for g := 0; g < tree.NumGhosts(); g++ {
			test.That(t, tree.GhostOwnerRank(uint32(g)), test.ShouldEqual, 1-rank)
		}
	})
}

func TestLoadBalanceMappingMarksReceived(t *testing.T) {
	logger := golog.NewTestLogger(t)
	runRanks(t, 2, func(rank int, comm Communicator) {
		tree, err := NewTree(2, r3.Vector{}, 1, DefaultMaxLevels, logger, comm)
		test.That(t, err, test.ShouldBeNil)
		if rank == 0 {
			tree.SetMarker(0, 2)
		}
		_, err = tree.Adapt(false)
		test.That(t, err, test.ShouldBeNil)
		_, err = tree.LoadBalance(nil)
		test.That(t, err, test.ShouldBeNil)

		for i := uint32(0); i < uint32(tree.NumOctants()); i++ {
			srcs, _, ranks := tree.GetMapping(i)
			if rank == 0 {
				// Kept octants stay in place.
				test.That(t, ranks, test.ShouldResemble, []int{0})
				test.That(t, srcs, test.ShouldResemble, []uint32{i})
			} else {
				// Every octant of rank 1 was received from rank 0.
				test.That(t, ranks, test.ShouldResemble, []int{0})
				test.That(t, len(srcs), test.ShouldEqual, 0)
			}
		}
	})
}

func TestLoadBalanceWeighted(t *testing.T) {
	logger := golog.NewTestLogger(t)
	runRanks(t, 2, func(rank int, comm Communicator) {
		tree, err := NewTree(2, r3.Vector{}, 1, DefaultMaxLevels, logger, comm)
		test.That(t, err, test.ShouldBeNil)
		if rank == 0 {
			tree.SetMarker(0, 1)
		}
		_, err = tree.Adapt(false)
		test.That(t, err, test.ShouldBeNil)

		// The first octant is as heavy as the other three together.
		var weights []float64
		if rank == 0 {
			weights = []float64{3, 1, 1, 1}
		} else {
			weights = []float64{}
		}
		_, err = tree.LoadBalance(weights)
		test.That(t, err, test.ShouldBeNil)

		if rank == 0 {
			test.That(t, tree.NumOctants(), test.ShouldEqual, 1)
		} else {
			test.That(t, tree.NumOctants(), test.ShouldEqual, 3)
		}
	})
}

func TestSerialLoadBalanceIsIdentity(t *testing.T) {
	tree := newTestTree(t, 2)
	tree.SetMarker(0, 1)
	_, err := tree.Adapt(false)
	test.That(t, err, test.ShouldBeNil)

	sent, err := tree.LoadBalance(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(sent), test.ShouldEqual, 0)
	test.That(t, tree.NumOctants(), test.ShouldEqual, 4)
	test.That(t, tree.LastOperation(), test.ShouldEqual, OpLoadBalance)
}
