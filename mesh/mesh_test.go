package mesh

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func newTestMesh(t *testing.T, dim int, length, dh float64) *Mesh {
	t.Helper()
	m, err := New(0, dim, r3.Vector{}, length, dh, golog.NewTestLogger(t), nil)
	test.That(t, err, test.ShouldBeNil)
	return m
}

func cellEvents(events []AdaptionEvent, types ...EventType) []AdaptionEvent {
	var out []AdaptionEvent
	for _, ev := range events {
		if ev.Entity != EntityCell {
			continue
		}
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

func TestInitialImport(t *testing.T) {
	// length/dh = 1 gives a single level-0 cell.
	m := newTestMesh(t, 2, 1, 1)
	test.That(t, m.CellCount(), test.ShouldEqual, 1)
	test.That(t, m.VertexCount(), test.ShouldEqual, 4)
	test.That(t, m.InterfaceCount(), test.ShouldEqual, 4)

	// length/dh = 2 gives the uniform 2x2 grid.
	m = newTestMesh(t, 2, 1, 0.5)
	test.That(t, m.CellCount(), test.ShouldEqual, 4)
	test.That(t, m.VertexCount(), test.ShouldEqual, 9)
	test.That(t, m.InterfaceCount(), test.ShouldEqual, 12)
}

func TestRefinementScenario(t *testing.T) {
	// A single level-0 cell is refined once; the update is tracked.
	m := newTestMesh(t, 2, 1, 1)
	test.That(t, m.MarkCellForRefinement(0), test.ShouldBeTrue)

	events, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	refinements := cellEvents(events, EventRefinement)
	test.That(t, len(refinements), test.ShouldEqual, 1)
	test.That(t, refinements[0].Previous, test.ShouldResemble, []int64{0})
	test.That(t, len(refinements[0].Current), test.ShouldEqual, 4)

	// The four children follow the Morton order.
	wantCentroids := []r3.Vector{
		{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.25, Y: 0.75}, {X: 0.75, Y: 0.75},
	}
	for i, id := range refinements[0].Current {
		centroid, err := m.EvalCellCentroid(id)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, centroid.X, test.ShouldAlmostEqual, wantCentroids[i].X)
		test.That(t, centroid.Y, test.ShouldAlmostEqual, wantCentroids[i].Y)
		test.That(t, centroid.Z, test.ShouldAlmostEqual, 0)
	}

	// Every face carries exactly one interface; four interior, eight
	// borders.
	interior := 0
	borders := 0
	for _, ifaceID := range m.InterfaceIDs() {
		iface, err := m.Interface(ifaceID)
		test.That(t, err, test.ShouldBeNil)
		if iface.IsBorder() {
			borders++
		} else {
			interior++
		}
	}
	test.That(t, interior, test.ShouldEqual, 4)
	test.That(t, borders, test.ShouldEqual, 8)
	for _, cellID := range m.CellIDs() {
		c, err := m.Cell(cellID)
		test.That(t, err, test.ShouldBeNil)
		for face := 0; face < c.FaceCount(); face++ {
			test.That(t, c.InterfaceCount(face), test.ShouldEqual, 1)
		}
	}

	test.That(t, m.VerifyConsistency(), test.ShouldBeNil)
}

func TestUpdateAdaptionNoChange(t *testing.T) {
	m := newTestMesh(t, 2, 1, 0.5)
	events, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(events), test.ShouldEqual, 0)
}

func TestCoarseningRoundTrip(t *testing.T) {
	m := newTestMesh(t, 2, 1, 1)
	m.MarkCellForRefinement(0)
	events, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)
	children := cellEvents(events, EventRefinement)[0].Current

	for _, id := range children {
		test.That(t, m.MarkCellForCoarsening(id), test.ShouldBeTrue)
	}
	events, err = m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	coarsenings := cellEvents(events, EventCoarsening)
	test.That(t, len(coarsenings), test.ShouldEqual, 1)
	test.That(t, len(coarsenings[0].Previous), test.ShouldEqual, 4)
	test.That(t, len(coarsenings[0].Current), test.ShouldEqual, 1)

	// The octant set is the original one again.
	test.That(t, m.CellCount(), test.ShouldEqual, 1)
	test.That(t, m.VertexCount(), test.ShouldEqual, 4)
	centroid, err := m.EvalCellCentroid(coarsenings[0].Current[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroid.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, m.VerifyConsistency(), test.ShouldBeNil)
}

func TestHangingFacesAndDanglingReconnection(t *testing.T) {
	m := newTestMesh(t, 2, 1, 0.5)

	lower := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.25})
	test.That(t, lower, test.ShouldNotEqual, NullID)
	m.MarkCellForRefinement(lower)
	_, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.CellCount(), test.ShouldEqual, 7)
	test.That(t, m.VerifyConsistency(), test.ShouldBeNil)

	// The right coarse cell sees two neighbours across its -x face: a
	// hanging face with two interfaces.
	right := m.LocatePoint(r3.Vector{X: 0.75, Y: 0.25})
	c, err := m.Cell(right)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.AdjacencyCount(0), test.ShouldEqual, 2)
	test.That(t, c.InterfaceCount(0), test.ShouldEqual, 2)
	test.That(t, c.IsFaceBorder(1), test.ShouldBeTrue)

	// On a hanging face the owner is the finer cell.
	for _, ifaceID := range c.Interfaces(0) {
		iface, err := m.Interface(ifaceID)
		test.That(t, err, test.ShouldBeNil)
		ownerLevel, err := m.CellLevel(iface.Owner())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ownerLevel, test.ShouldEqual, 2)
		test.That(t, iface.Neigh(), test.ShouldEqual, right)
	}
}

func TestPointLocation(t *testing.T) {
	m := newTestMesh(t, 2, 1, 1)
	m.MarkCellForRefinement(0)
	_, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	id := m.LocatePoint(r3.Vector{X: 0.8, Y: 0.3})
	test.That(t, id, test.ShouldNotEqual, NullID)
	centroid, err := m.EvalCellCentroid(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroid.X, test.ShouldAlmostEqual, 0.75)
	test.That(t, centroid.Y, test.ShouldAlmostEqual, 0.25)

	inside, err := m.IsPointInsideCell(id, r3.Vector{X: 0.8, Y: 0.3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inside, test.ShouldBeTrue)
	inside, err = m.IsPointInsideCell(id, r3.Vector{X: 0.3, Y: 0.3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inside, test.ShouldBeFalse)

	test.That(t, m.LocatePoint(r3.Vector{X: 1.5, Y: 0.5}), test.ShouldEqual, NullID)
	test.That(t, m.IsPointInside(r3.Vector{X: 0.1, Y: 0.9}), test.ShouldBeTrue)
	test.That(t, m.IsPointInside(r3.Vector{X: -0.1, Y: 0.9}), test.ShouldBeFalse)
}

func TestInterfaceNormalsAreAxisUnit(t *testing.T) {
	m := newTestMesh(t, 3, 1, 0.5)
	axes := []r3.Vector{
		{X: -1}, {X: 1}, {Y: -1}, {Y: 1}, {Z: -1}, {Z: 1},
	}
	for _, ifaceID := range m.InterfaceIDs() {
		normal, err := m.EvalInterfaceNormal(ifaceID)
		test.That(t, err, test.ShouldBeNil)
		iface, err := m.Interface(ifaceID)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, normal, test.ShouldResemble, axes[iface.OwnerFace()])
	}
}

func TestStitchingAcrossIndependentRefinements(t *testing.T) {
	m := newTestMesh(t, 2, 1, 0.5)

	m.MarkCellForRefinement(m.LocatePoint(r3.Vector{X: 0.25, Y: 0.25}))
	_, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	m.MarkCellForRefinement(m.LocatePoint(r3.Vector{X: 0.75, Y: 0.25}))
	_, err = m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.VerifyConsistency(), test.ShouldBeNil)

	// The two refined clusters share corner (0.5, 0.5) with a single
	// vertex id.
	left := m.LocatePoint(r3.Vector{X: 0.45, Y: 0.45})
	rightOf := m.LocatePoint(r3.Vector{X: 0.55, Y: 0.45})
	vertexAt := func(cellID int64, p r3.Vector) int64 {
		c, err := m.Cell(cellID)
		test.That(t, err, test.ShouldBeNil)
		for k := 0; k < c.VertexCount(); k++ {
			v, err := m.Vertex(c.Vertex(k))
			test.That(t, err, test.ShouldBeNil)
			if v.Coords().Sub(p).Norm() < 1e-12 {
				return v.ID()
			}
		}
		return NullID
	}
	shared := r3.Vector{X: 0.5, Y: 0.5}
	leftVertex := vertexAt(left, shared)
	rightVertex := vertexAt(rightOf, shared)
	test.That(t, leftVertex, test.ShouldNotEqual, NullID)
	test.That(t, leftVertex, test.ShouldEqual, rightVertex)
}

func TestBalancePropagation(t *testing.T) {
	// Refining a corner cell repeatedly with balancing on keeps every
	// neighbouring pair within one level.
	m := newTestMesh(t, 2, 1, 0.5)
	for step := 0; step < 3; step++ {
		id := m.LocatePoint(r3.Vector{X: 0.01, Y: 0.01})
		m.MarkCellForRefinement(id)
		_, err := m.UpdateAdaption(true)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, m.VerifyConsistency(), test.ShouldBeNil)
}

func TestEventCoverage(t *testing.T) {
	// Refining the first cell in Morton order renumbers every other cell,
	// so the events cover the whole mesh.
	m := newTestMesh(t, 2, 1, 1)
	m.MarkCellForRefinement(0)
	_, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	preIDs := map[int64]struct{}{}
	for _, id := range m.CellIDs() {
		preIDs[id] = struct{}{}
	}

	first := m.LocatePoint(r3.Vector{X: 0.01, Y: 0.01})
	m.MarkCellForRefinement(first)
	events, err := m.UpdateAdaption(true)
	test.That(t, err, test.ShouldBeNil)

	current := map[int64]struct{}{}
	previous := map[int64]struct{}{}
	for _, ev := range cellEvents(events,
		EventCreation, EventRefinement, EventCoarsening, EventRenumbering, EventPartitionRecv) {
		for _, id := range ev.Current {
			current[id] = struct{}{}
		}
	}
	for _, ev := range cellEvents(events,
		EventDeletion, EventRefinement, EventCoarsening, EventRenumbering, EventPartitionSend) {
		for _, id := range ev.Previous {
			previous[id] = struct{}{}
		}
	}

	postIDs := map[int64]struct{}{}
	for _, id := range m.CellIDs() {
		postIDs[id] = struct{}{}
	}
	test.That(t, current, test.ShouldResemble, postIDs)
	test.That(t, previous, test.ShouldResemble, preIDs)
}

func TestUnmappedAdaptionGuard(t *testing.T) {
	m := newTestMesh(t, 2, 1, 1)

	// Adapting the tree behind the mesh without a mapping makes a later
	// sync impossible.
	m.Tree().SetMarker(0, 1)
	_, err := m.Tree().Adapt(false)
	test.That(t, err, test.ShouldBeNil)
	_, err = m.sync(true)
	test.That(t, errors.Is(err, ErrInconsistentState), test.ShouldBeTrue)
}

func TestCellQueries(t *testing.T) {
	m := newTestMesh(t, 3, 2, 1)
	test.That(t, m.CellCount(), test.ShouldEqual, 8)

	id := m.CellIDs()[0]
	volume, err := m.EvalCellVolume(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, volume, test.ShouldAlmostEqual, 1)
	size, err := m.EvalCellSize(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, size, test.ShouldAlmostEqual, 1)

	ifaceID := m.InterfaceIDs()[0]
	area, err := m.EvalInterfaceArea(ifaceID)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, area, test.ShouldAlmostEqual, 1)

	_, err = m.EvalCellVolume(12345)
	test.That(t, errors.Is(err, ErrNotFound), test.ShouldBeTrue)
}

func TestTransforms(t *testing.T) {
	m := newTestMesh(t, 2, 1, 1)

	m.Translate(r3.Vector{X: 1, Y: 2})
	centroid, err := m.EvalCellCentroid(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroid.X, test.ShouldAlmostEqual, 1.5)
	test.That(t, centroid.Y, test.ShouldAlmostEqual, 2.5)
	v, err := m.Vertex(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Coords().X, test.ShouldAlmostEqual, 1)

	test.That(t, m.Scale(r3.Vector{X: 2, Y: 1, Z: 1}), test.ShouldNotBeNil)
	test.That(t, m.Scale(r3.Vector{X: 2, Y: 2, Z: 2}), test.ShouldBeNil)
	size, err := m.EvalCellSize(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, size, test.ShouldAlmostEqual, 2)
	centroid, err = m.EvalCellCentroid(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroid.X, test.ShouldAlmostEqual, 3)
}

func TestNeighbourFinders(t *testing.T) {
	m := newTestMesh(t, 2, 1, 0.5)

	lower := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.25})
	right := m.LocatePoint(r3.Vector{X: 0.75, Y: 0.25})
	upper := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.75})
	diag := m.LocatePoint(r3.Vector{X: 0.75, Y: 0.75})

	neighs, err := m.FindCellFaceNeighs(lower)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, neighs, test.ShouldResemble, []int64{right, upper})

	// The vertex search unions the corner neighbour with the face
	// neighbours around it.
	neighs, err = m.FindCellVertexNeighs(lower, 3, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, neighs, test.ShouldResemble, []int64{right, upper, diag})

	// Black-listed cells are excluded.
	neighs, err = m.FindCellVertexNeighs(lower, 3, []int64{diag})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, neighs, test.ShouldResemble, []int64{right, upper})

	_, err = m.FindCellEdgeNeighs(lower, 0, nil)
	test.That(t, errors.Is(err, ErrInvalidArgument), test.ShouldBeTrue)
}

func TestEdgeNeighbours3D(t *testing.T) {
	m := newTestMesh(t, 3, 1, 0.5)
	lower := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.25, Z: 0.25})

	// Edge 3 runs along x at the +y/-z corner. The -z side is the domain
	// boundary, so nothing lies across the edge itself; the +y face
	// neighbour is found through the faces sharing the edge.
	neighs, err := m.FindCellEdgeNeighs(lower, 3, nil)
	test.That(t, err, test.ShouldBeNil)
	diag := m.LocatePoint(r3.Vector{X: 0.25, Y: 0.75, Z: 0.25})
	test.That(t, contains(neighs, diag), test.ShouldBeTrue)

	// Vertex 7 is the cell's far corner; all seven surrounding cells are
	// found.
	neighs, err = m.FindCellVertexNeighs(lower, 7, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(neighs), test.ShouldEqual, 7)
}

func TestTolerancePropagation(t *testing.T) {
	m := newTestMesh(t, 2, 1, 1)
	m.SetTol(0.2)
	test.That(t, m.Tol(), test.ShouldAlmostEqual, 0.2)

	// With a fat tolerance a slightly outside point is still located.
	test.That(t, m.IsPointInside(r3.Vector{X: 1.1, Y: 0.5}), test.ShouldBeTrue)
	m.ResetTol()
	test.That(t, m.IsPointInside(r3.Vector{X: 1.1, Y: 0.5}), test.ShouldBeFalse)
	test.That(t, math.Abs(m.Tol()-1e-10), test.ShouldBeLessThan, 1e-20)
}
