package mesh

// EventType classifies a topological change applied during a sync.
type EventType int

// Adaption event types.
const (
	EventCreation EventType = iota
	EventRefinement
	EventCoarsening
	EventRenumbering
	EventPartitionSend
	EventPartitionRecv
	EventDeletion
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	switch t {
	case EventCreation:
		return "creation"
	case EventRefinement:
		return "refinement"
	case EventCoarsening:
		return "coarsening"
	case EventRenumbering:
		return "renumbering"
	case EventPartitionSend:
		return "partition-send"
	case EventPartitionRecv:
		return "partition-recv"
	case EventDeletion:
		return "deletion"
	default:
		return "unknown"
	}
}

// EventEntity identifies the kind of entity an event refers to.
type EventEntity int

// Adaption event entities.
const (
	EntityCell EventEntity = iota
	EntityVertex
	EntityInterface
)

// String implements fmt.Stringer.
func (e EventEntity) String() string {
	switch e {
	case EntityCell:
		return "cell"
	case EntityVertex:
		return "vertex"
	default:
		return "interface"
	}
}

// AdaptionEvent describes one topological change across a sync, precise
// enough for application-level field transfer. Within a partition-recv event
// the current ids follow the post-adaption tree-index order; within the
// matching partition-send on the source rank the previous ids follow the
// pre-adaption tree-index order. Both orders walk the Morton curve, so the
// two ranks can pack and unpack field data without extra metadata.
type AdaptionEvent struct {
	Type     EventType
	Entity   EventEntity
	Rank     int
	Previous []int64
	Current  []int64
}

// eventCollection accumulates adaption events during a sync. Deletion,
// partition transfers and interface events aggregate per (type, entity,
// rank); the other types get one event per change.
type eventCollection struct {
	events []AdaptionEvent
	cache  map[eventKey]int

	// Tree indices of the octants whose cells are not yet created when the
	// event is recorded; translated to cell ids at the end of the sync.
	pendingTreeIdxs [][]uint32
}

type eventKey struct {
	t    EventType
	e    EventEntity
	rank int
}

func newEventCollection() *eventCollection {
	return &eventCollection{cache: map[eventKey]int{}}
}

// create returns an event for the given key, reusing the aggregated entry
// when the type aggregates.
func (ec *eventCollection) create(t EventType, e EventEntity, rank int) int {
	aggregates := t == EventDeletion || t == EventPartitionSend || t == EventPartitionRecv || e == EntityInterface
	key := eventKey{t, e, rank}
	if aggregates {
		if idx, ok := ec.cache[key]; ok {
			return idx
		}
	}
	ec.events = append(ec.events, AdaptionEvent{Type: t, Entity: e, Rank: rank})
	ec.pendingTreeIdxs = append(ec.pendingTreeIdxs, nil)
	idx := len(ec.events) - 1
	if aggregates {
		ec.cache[key] = idx
	}
	return idx
}

func (ec *eventCollection) at(idx int) *AdaptionEvent {
	return &ec.events[idx]
}

func (ec *eventCollection) addPendingCurrent(idx int, treeIdx uint32) {
	ec.pendingTreeIdxs[idx] = append(ec.pendingTreeIdxs[idx], treeIdx)
}

// resolve translates the pending tree indices into cell ids and returns the
// final event list.
func (ec *eventCollection) resolve(octantToCell map[uint32]int64) []AdaptionEvent {
	for i := range ec.events {
		for _, treeIdx := range ec.pendingTreeIdxs[i] {
			ec.events[i].Current = append(ec.events[i].Current, octantToCell[treeIdx])
		}
	}
	return ec.events
}
