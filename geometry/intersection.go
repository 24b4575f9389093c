package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// IntersectLineLine intersects two lines, each given by a point and a unit
// direction. The intersection point is valid only when the predicate returns
// true; parallel or skew lines return false.
func IntersectLineLine(p1, n1, p2, n2 r3.Vector) (r3.Vector, bool) {
	cross := n1.Cross(n2)
	den := cross.Norm2()
	if den < AbsTolerance {
		return r3.Vector{}, false
	}
	s := p2.Sub(p1).Cross(n2).Dot(cross) / den
	x := p1.Add(n1.Mul(s))
	if DistancePointLine(x, p2, n2) > AbsTolerance {
		// Skew lines.
		return r3.Vector{}, false
	}
	return x, true
}

// IntersectSegmentSegment intersects two segments. The intersection point is
// valid only when the predicate returns true.
func IntersectSegmentSegment(p0, p1, q0, q1 r3.Vector) (r3.Vector, bool) {
	dp := p1.Sub(p0)
	dq := q1.Sub(q0)
	lp := dp.Norm()
	lq := dq.Norm()
	if lp < AbsTolerance || lq < AbsTolerance {
		return r3.Vector{}, false
	}

	x, ok := IntersectLineLine(p0, dp.Mul(1/lp), q0, dq.Mul(1/lq))
	if !ok {
		return r3.Vector{}, false
	}
	s := x.Sub(p0).Dot(dp) / dp.Norm2()
	t := x.Sub(q0).Dot(dq) / dq.Norm2()
	if s < -AbsTolerance || s > 1+AbsTolerance || t < -AbsTolerance || t > 1+AbsTolerance {
		return r3.Vector{}, false
	}
	return x, true
}

// IntersectLinePlane intersects the line through P with unit direction n and
// the plane through Q with unit normal nP. Lines parallel to the plane
// return false.
func IntersectLinePlane(p, n, q, nP r3.Vector) (r3.Vector, bool) {
	den := n.Dot(nP)
	if math.Abs(den) < AbsTolerance {
		return r3.Vector{}, false
	}
	t := q.Sub(p).Dot(nP) / den
	return p.Add(n.Mul(t)), true
}

// IntersectSegmentPlane intersects the segment Q0-Q1 and the plane through Q
// with unit normal nP.
func IntersectSegmentPlane(q0, q1, q, nP r3.Vector) (r3.Vector, bool) {
	dir := q1.Sub(q0)
	length := dir.Norm()
	if length < AbsTolerance {
		return r3.Vector{}, false
	}
	n := dir.Mul(1 / length)
	x, ok := IntersectLinePlane(q0, n, q, nP)
	if !ok {
		return r3.Vector{}, false
	}
	t := x.Sub(q0).Dot(n) / length
	if t < -AbsTolerance || t > 1+AbsTolerance {
		return r3.Vector{}, false
	}
	return x, true
}

// IntersectPlanePlane intersects two planes, each given by a point and a
// unit normal, returning a point on the intersection line and its unit
// direction. Parallel planes return false.
func IntersectPlanePlane(p1, n1, p2, n2 r3.Vector) (r3.Vector, r3.Vector, bool) {
	dir := n1.Cross(n2)
	den := dir.Norm2()
	if den < AbsTolerance {
		return r3.Vector{}, r3.Vector{}, false
	}

	// Solve for the point of the line in the span of the two normals.
	d1 := n1.Dot(p1)
	d2 := n2.Dot(p2)
	a := n1.Norm2()
	b := n1.Dot(n2)
	c := n2.Norm2()
	det := a*c - b*b
	s1 := (d1*c - d2*b) / det
	s2 := (d2*a - d1*b) / det
	x := n1.Mul(s1).Add(n2.Mul(s2))

	return x, dir.Mul(1 / math.Sqrt(den)), true
}

// IntersectLineTriangle intersects the line through P with unit direction n
// and the triangle Q0-Q1-Q2.
func IntersectLineTriangle(p, n, q0, q1, q2 r3.Vector) (r3.Vector, bool) {
	normal := q1.Sub(q0).Cross(q2.Sub(q0))
	area2 := normal.Norm()
	if area2 < AbsTolerance {
		return r3.Vector{}, false
	}
	x, ok := IntersectLinePlane(p, n, q0, normal.Mul(1/area2))
	if !ok {
		return r3.Vector{}, false
	}
	if !pointInTriangle(x, q0, q1, q2) {
		return r3.Vector{}, false
	}
	return x, true
}

// IntersectSegmentTriangle intersects the segment P0-P1 and the triangle
// Q0-Q1-Q2.
func IntersectSegmentTriangle(p0, p1, q0, q1, q2 r3.Vector) (r3.Vector, bool) {
	dir := p1.Sub(p0)
	length := dir.Norm()
	if length < AbsTolerance {
		return r3.Vector{}, false
	}
	n := dir.Mul(1 / length)
	x, ok := IntersectLineTriangle(p0, n, q0, q1, q2)
	if !ok {
		return r3.Vector{}, false
	}
	t := x.Sub(p0).Dot(n) / length
	if t < -AbsTolerance || t > 1+AbsTolerance {
		return r3.Vector{}, false
	}
	return x, true
}

// IntersectLineSimplex intersects a line and a convex polygon by fanning the
// polygon into triangles.
func IntersectLineSimplex(p, n r3.Vector, verts []r3.Vector) (r3.Vector, bool) {
	for i := 1; i < len(verts)-1; i++ {
		if x, ok := IntersectLineTriangle(p, n, verts[0], verts[i], verts[i+1]); ok {
			return x, true
		}
	}
	return r3.Vector{}, false
}

// IntersectSegmentSimplex intersects a segment and a convex polygon by
// fanning the polygon into triangles.
func IntersectSegmentSimplex(p0, p1 r3.Vector, verts []r3.Vector) (r3.Vector, bool) {
	for i := 1; i < len(verts)-1; i++ {
		if x, ok := IntersectSegmentTriangle(p0, p1, verts[0], verts[i], verts[i+1]); ok {
			return x, true
		}
	}
	return r3.Vector{}, false
}

// pointInTriangle reports whether a point known to lie on the triangle plane
// falls inside the triangle.
func pointInTriangle(x, q0, q1, q2 r3.Vector) bool {
	e0 := q1.Sub(q0)
	e1 := q2.Sub(q0)
	d := x.Sub(q0)

	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	det := a*c - b*b

	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	return u >= -AbsTolerance && v >= -AbsTolerance && u+v <= 1+AbsTolerance
}
