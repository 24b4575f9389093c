package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestProjectPointSegment(t *testing.T) {
	q0 := r3.Vector{X: 0, Y: 0, Z: 0}
	q1 := r3.Vector{X: 2, Y: 0, Z: 0}

	x, lambda := ProjectPointSegment(r3.Vector{X: 1, Y: 1, Z: 0}, q0, q1)
	test.That(t, x, test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, lambda[0], test.ShouldAlmostEqual, 0.5)
	test.That(t, lambda[1], test.ShouldAlmostEqual, 0.5)

	// Clamped beyond the segment end.
	x, lambda = ProjectPointSegment(r3.Vector{X: 5, Y: 3, Z: 0}, q0, q1)
	test.That(t, x, test.ShouldResemble, q1)
	test.That(t, lambda, test.ShouldResemble, [2]float64{0, 1})
}

func TestProjectPointTriangle(t *testing.T) {
	q0 := r3.Vector{}
	q1 := r3.Vector{X: 1}
	q2 := r3.Vector{Y: 1}

	// Outside the hypotenuse, projects onto its midpoint.
	x, lambda := ProjectPointTriangle(r3.Vector{X: 1, Y: 1, Z: 0}, q0, q1, q2)
	test.That(t, x.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, x.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, x.Z, test.ShouldAlmostEqual, 0)
	test.That(t, lambda[0], test.ShouldAlmostEqual, 0)
	test.That(t, lambda[1], test.ShouldAlmostEqual, 0.5)
	test.That(t, lambda[2], test.ShouldAlmostEqual, 0.5)

	// Interior projection keeps the planar coordinates.
	x, lambda = ProjectPointTriangle(r3.Vector{X: 0.25, Y: 0.25, Z: 3}, q0, q1, q2)
	test.That(t, x.X, test.ShouldAlmostEqual, 0.25)
	test.That(t, x.Y, test.ShouldAlmostEqual, 0.25)
	test.That(t, x.Z, test.ShouldAlmostEqual, 0)
	test.That(t, lambda[0], test.ShouldAlmostEqual, 0.5)
}

func TestProjectCloudTriangle(t *testing.T) {
	q0 := r3.Vector{}
	q1 := r3.Vector{X: 1}
	q2 := r3.Vector{Y: 1}

	cloud := []r3.Vector{
		{X: 1, Y: 1, Z: 0},
		{X: 0.25, Y: 0.25, Z: 1},
		{X: -1, Y: -1, Z: 0},
	}
	proj, lambdas, err := ProjectCloudTriangle(cloud, q0, q1, q2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, proj[0].X, test.ShouldAlmostEqual, 0.5)
	test.That(t, proj[0].Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, proj[1].X, test.ShouldAlmostEqual, 0.25)
	test.That(t, proj[2], test.ShouldResemble, q0)
	test.That(t, lambdas[2][0], test.ShouldAlmostEqual, 1)

	// A degenerate triangle cannot be factorized.
	_, _, err = ProjectCloudTriangle(cloud, q0, q1, q1.Mul(2))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestProjectPointSimplex(t *testing.T) {
	square := []r3.Vector{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}

	x, lambda, err := ProjectPointSimplex(r3.Vector{X: 0.5, Y: 0.5, Z: 2}, square)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, x.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, x.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, x.Z, test.ShouldAlmostEqual, 0)
	test.That(t, len(lambda), test.ShouldEqual, 4)

	_, _, err = ProjectPointSimplex(r3.Vector{}, square[:1])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDistancePointTriangle(t *testing.T) {
	d, _ := DistancePointTriangle(
		r3.Vector{X: 0.25, Y: 0.25, Z: 2},
		r3.Vector{}, r3.Vector{X: 1}, r3.Vector{Y: 1},
	)
	test.That(t, d, test.ShouldAlmostEqual, 2)
}

func TestIntersectLineLine(t *testing.T) {
	x, ok := IntersectLineLine(
		r3.Vector{}, r3.Vector{X: 1},
		r3.Vector{X: 2, Y: -1}, r3.Vector{Y: 1},
	)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x, test.ShouldResemble, r3.Vector{X: 2})

	// Parallel lines do not intersect.
	_, ok = IntersectLineLine(
		r3.Vector{}, r3.Vector{X: 1},
		r3.Vector{Y: 1}, r3.Vector{X: 1},
	)
	test.That(t, ok, test.ShouldBeFalse)

	// Skew lines do not intersect.
	_, ok = IntersectLineLine(
		r3.Vector{}, r3.Vector{X: 1},
		r3.Vector{Y: 1, Z: 1}, r3.Vector{Y: 1},
	)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIntersectSegmentPlane(t *testing.T) {
	x, ok := IntersectSegmentPlane(
		r3.Vector{Z: -1}, r3.Vector{Z: 1},
		r3.Vector{}, r3.Vector{Z: 1},
	)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x.Z, test.ShouldAlmostEqual, 0)

	// Segment entirely on one side.
	_, ok = IntersectSegmentPlane(
		r3.Vector{Z: 1}, r3.Vector{Z: 2},
		r3.Vector{}, r3.Vector{Z: 1},
	)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIntersectPlanePlane(t *testing.T) {
	point, dir, ok := IntersectPlanePlane(
		r3.Vector{}, r3.Vector{Z: 1},
		r3.Vector{}, r3.Vector{X: 1},
	)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(dir.Y), test.ShouldAlmostEqual, 1)
	test.That(t, point.X, test.ShouldAlmostEqual, 0)
	test.That(t, point.Z, test.ShouldAlmostEqual, 0)

	_, _, ok = IntersectPlanePlane(
		r3.Vector{}, r3.Vector{Z: 1},
		r3.Vector{Z: 5}, r3.Vector{Z: 1},
	)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIntersectSegmentTriangle(t *testing.T) {
	q0 := r3.Vector{}
	q1 := r3.Vector{X: 1}
	q2 := r3.Vector{Y: 1}

	x, ok := IntersectSegmentTriangle(
		r3.Vector{X: 0.2, Y: 0.2, Z: -1}, r3.Vector{X: 0.2, Y: 0.2, Z: 1},
		q0, q1, q2,
	)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x.Z, test.ShouldAlmostEqual, 0)

	// Crossing the plane outside the triangle.
	_, ok = IntersectSegmentTriangle(
		r3.Vector{X: 2, Y: 2, Z: -1}, r3.Vector{X: 2, Y: 2, Z: 1},
		q0, q1, q2,
	)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBoxAlgebra(t *testing.T) {
	a := Box{Min: r3.Vector{}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	b := Box{Min: r3.Vector{X: 1, Y: 1, Z: 1}, Max: r3.Vector{X: 3, Y: 3, Z: 3}}

	u := UnionAABB(a, b)
	test.That(t, u.Min, test.ShouldResemble, r3.Vector{})
	test.That(t, u.Max, test.ShouldResemble, r3.Vector{X: 3, Y: 3, Z: 3})

	i, ok := IntersectionAABB(a, b)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, i.Min, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
	test.That(t, i.Max, test.ShouldResemble, r3.Vector{X: 2, Y: 2, Z: 2})

	_, ok = IntersectionAABB(a, Box{Min: r3.Vector{X: 5}, Max: r3.Vector{X: 6, Y: 1, Z: 1}})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestSubtractionAABB(t *testing.T) {
	a := Box{Min: r3.Vector{}, Max: r3.Vector{X: 2, Y: 2, Z: 2}}
	b := Box{Min: r3.Vector{X: 1, Y: 1, Z: 1}, Max: r3.Vector{X: 3, Y: 3, Z: 3}}

	parts := SubtractionAABB(a, b)

	// Pieces are disjoint and their volume is that of a minus the overlap.
	volume := 0.0
	for _, p := range parts {
		d := p.Max.Sub(p.Min)
		volume += d.X * d.Y * d.Z
		if ov, overlaps := IntersectBoxBox(p, b); overlaps {
			extent := ov.Max.Sub(ov.Min)
			test.That(t, extent.X*extent.Y*extent.Z, test.ShouldAlmostEqual, 0)
		}
	}
	test.That(t, volume, test.ShouldAlmostEqual, 8-1)

	// Disjoint boxes subtract to the original.
	parts = SubtractionAABB(a, Box{Min: r3.Vector{X: 5}, Max: r3.Vector{X: 6, Y: 1, Z: 1}})
	test.That(t, parts, test.ShouldResemble, []Box{a})
}

func TestIntersectBoxSegment(t *testing.T) {
	b := Box{Min: r3.Vector{}, Max: r3.Vector{X: 1, Y: 1, Z: 1}}

	x, ok := IntersectBoxSegment(b, r3.Vector{X: -1, Y: 0.5, Z: 0.5}, r3.Vector{X: 2, Y: 0.5, Z: 0.5})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x.X, test.ShouldAlmostEqual, 0)

	_, ok = IntersectBoxSegment(b, r3.Vector{X: -1, Y: 2, Z: 0.5}, r3.Vector{X: 2, Y: 2, Z: 0.5})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestIntersectBoxTriangle(t *testing.T) {
	b := Box{Min: r3.Vector{}, Max: r3.Vector{X: 1, Y: 1, Z: 1}}

	// Large triangle slicing through the box without vertices inside.
	ok := IntersectBoxTriangle(b,
		r3.Vector{X: -5, Y: -5, Z: 0.5},
		r3.Vector{X: 5, Y: -5, Z: 0.5},
		r3.Vector{X: 0, Y: 10, Z: 0.5},
	)
	test.That(t, ok, test.ShouldBeTrue)

	ok = IntersectBoxTriangle(b,
		r3.Vector{X: -5, Y: -5, Z: 5},
		r3.Vector{X: 5, Y: -5, Z: 5},
		r3.Vector{X: 0, Y: 10, Z: 5},
	)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestBarycentricFlags(t *testing.T) {
	test.That(t, ConvertBarycentricToFlagSegment([2]float64{0.5, 0.5}), test.ShouldEqual, 0)
	test.That(t, ConvertBarycentricToFlagSegment([2]float64{1, 0}), test.ShouldEqual, 1)
	test.That(t, ConvertBarycentricToFlagSegment([2]float64{0, 1}), test.ShouldEqual, 2)

	test.That(t, ConvertBarycentricToFlagTriangle([3]float64{0.2, 0.3, 0.5}), test.ShouldEqual, 0)
	test.That(t, ConvertBarycentricToFlagTriangle([3]float64{0, 1, 0}), test.ShouldEqual, 2)
	test.That(t, ConvertBarycentricToFlagTriangle([3]float64{0.5, 0.5, 0}), test.ShouldEqual, -1)
	test.That(t, ConvertBarycentricToFlagTriangle([3]float64{0.5, 0, 0.5}), test.ShouldEqual, -3)

	test.That(t, ConvertBarycentricToFlagSimplex([]float64{0, 0.5, 0.5, 0}), test.ShouldEqual, -2)
	test.That(t, ConvertBarycentricToFlagSimplex([]float64{0.5, 0, 0, 0.5}), test.ShouldEqual, -4)
}
