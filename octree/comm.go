package octree

import (
	"github.com/pkg/errors"
)

// ErrPartition reports a failed collective operation during partitioning.
var ErrPartition = errors.New("partition collective failed")

// Communicator is the message-passing layer of the distributed octree. All
// operations are synchronous collectives involving every rank; there is no
// shared state between ranks. A serial communicator makes the tree fully
// functional in a single process.
type Communicator interface {
	// Rank returns the index of the local rank.
	Rank() int
	// Size returns the number of ranks in the communicator.
	Size() int
	// AllGatherUint64 gathers one value from every rank, ordered by rank.
	AllGatherUint64(v uint64) ([]uint64, error)
	// AllGatherFloat64s gathers a variable-length slice from every rank,
	// ordered by rank.
	AllGatherFloat64s(v []float64) ([][]float64, error)
	// ExchangeOctants performs a sparse all-to-all of octants. The out map
	// is keyed by destination rank; the result is keyed by source rank and
	// omits empty deliveries.
	ExchangeOctants(out map[int][]Octant) (map[int][]Octant, error)
}

// serialComm is the single-rank communicator.
type serialComm struct{}

// NewSerialCommunicator returns the communicator of a single-rank tree.
func NewSerialCommunicator() Communicator {
	return serialComm{}
}

func (serialComm) Rank() int { return 0 }
func (serialComm) Size() int { return 1 }

func (serialComm) AllGatherUint64(v uint64) ([]uint64, error) {
	return []uint64{v}, nil
}

func (serialComm) AllGatherFloat64s(v []float64) ([][]float64, error) {
	return [][]float64{v}, nil
}

func (serialComm) ExchangeOctants(out map[int][]Octant) (map[int][]Octant, error) {
	for rank := range out {
		if rank != 0 {
			return nil, errors.Wrapf(ErrPartition, "no rank %d in a serial communicator", rank)
		}
	}
	res := make(map[int][]Octant)
	if len(out[0]) > 0 {
		res[0] = out[0]
	}
	return res, nil
}

// channelComm connects the ranks of a single process through buffered
// channels, one mailbox per ordered rank pair. Every rank runs its tree on
// its own goroutine; the collectives follow a send-all-then-receive-all
// protocol so that no pairwise rendezvous can deadlock.
type channelComm struct {
	rank     int
	size     int
	uints    [][]chan uint64
	floats   [][]chan []float64
	octants  [][]chan []Octant
}

// NewChannelCommunicators returns one in-process communicator per rank.
func NewChannelCommunicators(size int) []Communicator {
	uints := makeMailboxes[uint64](size)
	floats := makeMailboxes[[]float64](size)
	octants := makeMailboxes[[]Octant](size)

	comms := make([]Communicator, size)
	for r := 0; r < size; r++ {
		comms[r] = &channelComm{
			rank:    r,
			size:    size,
			uints:   uints,
			floats:  floats,
			octants: octants,
		}
	}
	return comms
}

func makeMailboxes[T any](size int) [][]chan T {
	boxes := make([][]chan T, size)
	for from := range boxes {
		boxes[from] = make([]chan T, size)
		for to := range boxes[from] {
			boxes[from][to] = make(chan T, 1)
		}
	}
	return boxes
}

func (c *channelComm) Rank() int { return c.rank }
func (c *channelComm) Size() int { return c.size }

func (c *channelComm) AllGatherUint64(v uint64) ([]uint64, error) {
	for to := 0; to < c.size; to++ {
		c.uints[c.rank][to] <- v
	}
	res := make([]uint64, c.size)
	for from := 0; from < c.size; from++ {
		res[from] = <-c.uints[from][c.rank]
	}
	return res, nil
}

func (c *channelComm) AllGatherFloat64s(v []float64) ([][]float64, error) {
	for to := 0; to < c.size; to++ {
		c.floats[c.rank][to] <- v
	}
	res := make([][]float64, c.size)
	for from := 0; from < c.size; from++ {
		res[from] = <-c.floats[from][c.rank]
	}
	return res, nil
}

func (c *channelComm) ExchangeOctants(out map[int][]Octant) (map[int][]Octant, error) {
	for to := 0; to < c.size; to++ {
		if to == c.rank {
			continue
		}
		c.octants[c.rank][to] <- out[to]
	}
	res := make(map[int][]Octant)
	if len(out[c.rank]) > 0 {
		res[c.rank] = out[c.rank]
	}
	for from := 0; from < c.size; from++ {
		if from == c.rank {
			continue
		}
		if recv := <-c.octants[from][c.rank]; len(recv) > 0 {
			res[from] = recv
		}
	}
	return res, nil
}
