package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box is an axis-aligned bounding box.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// NewBoxFromPoints returns the AABB of a point set. At least one point is
// required; the empty set yields the zero box.
func NewBoxFromPoints(points ...r3.Vector) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// BoxOfSegment returns the AABB of the segment Q0-Q1.
func BoxOfSegment(q0, q1 r3.Vector) Box {
	return NewBoxFromPoints(q0, q1)
}

// BoxOfTriangle returns the AABB of the triangle Q0-Q1-Q2.
func BoxOfTriangle(q0, q1, q2 r3.Vector) Box {
	return NewBoxFromPoints(q0, q1, q2)
}

// BoxOfSimplex returns the AABB of a polygon vertex list.
func BoxOfSimplex(verts []r3.Vector) Box {
	return NewBoxFromPoints(verts...)
}

// ContainsPoint reports whether the point lies inside the closed box, within
// the given tolerance.
func (b Box) ContainsPoint(p r3.Vector, tol float64) bool {
	return p.X >= b.Min.X-tol && p.X <= b.Max.X+tol &&
		p.Y >= b.Min.Y-tol && p.Y <= b.Max.Y+tol &&
		p.Z >= b.Min.Z-tol && p.Z <= b.Max.Z+tol
}

// IntersectBoxBox reports whether two boxes overlap and returns their
// intersection. The intersection is valid only when the predicate is true.
func IntersectBoxBox(a, b Box) (Box, bool) {
	lo := r3.Vector{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y), Z: math.Max(a.Min.Z, b.Min.Z)}
	hi := r3.Vector{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y), Z: math.Min(a.Max.Z, b.Max.Z)}
	if lo.X > hi.X+AbsTolerance || lo.Y > hi.Y+AbsTolerance || lo.Z > hi.Z+AbsTolerance {
		return Box{}, false
	}
	return Box{Min: lo, Max: hi}, true
}

// UnionAABB returns the smallest box containing both boxes.
func UnionAABB(a, b Box) Box {
	return Box{
		Min: r3.Vector{X: math.Min(a.Min.X, b.Min.X), Y: math.Min(a.Min.Y, b.Min.Y), Z: math.Min(a.Min.Z, b.Min.Z)},
		Max: r3.Vector{X: math.Max(a.Max.X, b.Max.X), Y: math.Max(a.Max.Y, b.Max.Y), Z: math.Max(a.Max.Z, b.Max.Z)},
	}
}

// IntersectionAABB returns the intersection of two boxes; the second result
// reports whether the boxes overlap at all.
func IntersectionAABB(a, b Box) (Box, bool) {
	return IntersectBoxBox(a, b)
}

// SubtractionAABB returns the relative complement a \ b as a list of
// disjoint boxes. Each axis carves its slabs from the part of a already
// clamped to the overlap of the previous axes.
func SubtractionAABB(a, b Box) []Box {
	overlap, ok := IntersectBoxBox(a, b)
	if !ok {
		return []Box{a}
	}

	var parts []Box

	// X slabs span the full Y/Z extent of a.
	if a.Min.X < overlap.Min.X {
		parts = append(parts, Box{Min: a.Min, Max: r3.Vector{X: overlap.Min.X, Y: a.Max.Y, Z: a.Max.Z}})
	}
	if overlap.Max.X < a.Max.X {
		parts = append(parts, Box{Min: r3.Vector{X: overlap.Max.X, Y: a.Min.Y, Z: a.Min.Z}, Max: a.Max})
	}

	// Y slabs are clamped to the X overlap.
	if a.Min.Y < overlap.Min.Y {
		parts = append(parts, Box{
			Min: r3.Vector{X: overlap.Min.X, Y: a.Min.Y, Z: a.Min.Z},
			Max: r3.Vector{X: overlap.Max.X, Y: overlap.Min.Y, Z: a.Max.Z},
		})
	}
	if overlap.Max.Y < a.Max.Y {
		parts = append(parts, Box{
			Min: r3.Vector{X: overlap.Min.X, Y: overlap.Max.Y, Z: a.Min.Z},
			Max: r3.Vector{X: overlap.Max.X, Y: a.Max.Y, Z: a.Max.Z},
		})
	}

	// Z slabs are clamped to the X and Y overlaps.
	if a.Min.Z < overlap.Min.Z {
		parts = append(parts, Box{
			Min: r3.Vector{X: overlap.Min.X, Y: overlap.Min.Y, Z: a.Min.Z},
			Max: r3.Vector{X: overlap.Max.X, Y: overlap.Max.Y, Z: overlap.Min.Z},
		})
	}
	if overlap.Max.Z < a.Max.Z {
		parts = append(parts, Box{
			Min: r3.Vector{X: overlap.Min.X, Y: overlap.Min.Y, Z: overlap.Max.Z},
			Max: r3.Vector{X: overlap.Max.X, Y: overlap.Max.Y, Z: a.Max.Z},
		})
	}

	return parts
}

// IntersectBoxSegment reports whether the segment Q0-Q1 crosses the box and
// returns the first intersection point along the segment. The point is
// valid only when the predicate returns true.
func IntersectBoxSegment(b Box, q0, q1 r3.Vector) (r3.Vector, bool) {
	dir := q1.Sub(q0)

	tMin := 0.0
	tMax := 1.0
	for axis := 0; axis < 3; axis++ {
		o := component(q0, axis)
		d := component(dir, axis)
		lo := component(b.Min, axis)
		hi := component(b.Max, axis)
		if math.Abs(d) < AbsTolerance {
			if o < lo-AbsTolerance || o > hi+AbsTolerance {
				return r3.Vector{}, false
			}
			continue
		}
		t0 := (lo - o) / d
		t1 := (hi - o) / d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin = math.Max(tMin, t0)
		tMax = math.Min(tMax, t1)
		if tMin > tMax+AbsTolerance {
			return r3.Vector{}, false
		}
	}
	return q0.Add(dir.Mul(tMin)), true
}

// IntersectBoxTriangle reports whether the triangle Q0-Q1-Q2 intersects the
// box.
func IntersectBoxTriangle(b Box, q0, q1, q2 r3.Vector) bool {
	if _, ok := IntersectBoxBox(b, BoxOfTriangle(q0, q1, q2)); !ok {
		return false
	}
	for _, v := range []r3.Vector{q0, q1, q2} {
		if b.ContainsPoint(v, AbsTolerance) {
			return true
		}
	}

	// Triangle edges against the box.
	edges := [3][2]r3.Vector{{q0, q1}, {q1, q2}, {q2, q0}}
	for _, e := range edges {
		if _, ok := IntersectBoxSegment(b, e[0], e[1]); ok {
			return true
		}
	}

	// Box diagonals against the triangle, for a triangle slicing through
	// the box interior without vertex or edge contact.
	diagonals := [4][2]r3.Vector{
		{b.Min, b.Max},
		{{X: b.Max.X, Y: b.Min.Y, Z: b.Min.Z}, {X: b.Min.X, Y: b.Max.Y, Z: b.Max.Z}},
		{{X: b.Min.X, Y: b.Max.Y, Z: b.Min.Z}, {X: b.Max.X, Y: b.Min.Y, Z: b.Max.Z}},
		{{X: b.Min.X, Y: b.Min.Y, Z: b.Max.Z}, {X: b.Max.X, Y: b.Max.Y, Z: b.Min.Z}},
	}
	for _, d := range diagonals {
		if _, ok := IntersectSegmentTriangle(d[0], d[1], q0, q1, q2); ok {
			return true
		}
	}
	return false
}

// IntersectBoxSimplex reports whether a convex polygon intersects the box by
// fanning the polygon into triangles.
func IntersectBoxSimplex(b Box, verts []r3.Vector) bool {
	if len(verts) == 2 {
		_, ok := IntersectBoxSegment(b, verts[0], verts[1])
		return ok
	}
	for i := 1; i < len(verts)-1; i++ {
		if IntersectBoxTriangle(b, verts[0], verts[i], verts[i+1]) {
			return true
		}
	}
	return false
}

func component(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
