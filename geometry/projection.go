package geometry

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ProjectPointLine projects a point onto the line through Q with unit
// direction n.
func ProjectPointLine(p, q, n r3.Vector) r3.Vector {
	return q.Add(n.Mul(p.Sub(q).Dot(n)))
}

// ProjectPointPlane projects a point onto the plane through Q with unit
// normal n.
func ProjectPointPlane(p, q, n r3.Vector) r3.Vector {
	return p.Sub(n.Mul(p.Sub(q).Dot(n)))
}

// ProjectPointSegment returns the closest point on the segment Q0-Q1 and the
// clamped barycentric coordinates of the projection, with lambda[0] the
// weight of Q0 and lambda[0]+lambda[1] = 1.
func ProjectPointSegment(p, q0, q1 r3.Vector) (r3.Vector, [2]float64) {
	dir := q1.Sub(q0)
	den := dir.Norm2()
	if den < AbsTolerance {
		// Degenerate segment, both vertices coincide.
		return q0, [2]float64{1, 0}
	}
	t := clamp(p.Sub(q0).Dot(dir)/den, 0, 1)
	lambda := [2]float64{1 - t, t}
	return q0.Mul(lambda[0]).Add(q1.Mul(lambda[1])), lambda
}

// ProjectPointTriangle returns the closest point on the triangle Q0-Q1-Q2
// and the clamped barycentric coordinates of the projection. The planar
// coordinates are obtained from the 2x2 SPD Gram system of the edge vectors;
// when the planar projection falls outside the triangle, the point is
// restricted onto the closest edge.
func ProjectPointTriangle(p, q0, q1, q2 r3.Vector) (r3.Vector, [3]float64) {
	e0 := q1.Sub(q0)
	e1 := q2.Sub(q0)
	d := p.Sub(q0)

	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	det := a*c - b*b

	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	lambda := [3]float64{1 - u - v, u, v}
	if lambda[0] >= -AbsTolerance && lambda[1] >= -AbsTolerance && lambda[2] >= -AbsTolerance {
		return q0.Add(e0.Mul(u)).Add(e1.Mul(v)), lambda
	}
	return restrictPointTriangle(p, q0, q1, q2)
}

// restrictPointTriangle clamps the projection of p to the triangle boundary
// by projecting onto each edge and keeping the closest candidate.
func restrictPointTriangle(p, q0, q1, q2 r3.Vector) (r3.Vector, [3]float64) {
	verts := [3]r3.Vector{q0, q1, q2}

	var bestX r3.Vector
	var bestLambda [3]float64
	bestDist := -1.0
	for e := 0; e < 3; e++ {
		v0 := verts[e]
		v1 := verts[(e+1)%3]
		x, l := ProjectPointSegment(p, v0, v1)
		if dist := p.Sub(x).Norm2(); bestDist < 0 || dist < bestDist {
			bestDist = dist
			bestX = x
			bestLambda = [3]float64{}
			bestLambda[e] = l[0]
			bestLambda[(e+1)%3] = l[1]
		}
	}
	return bestX, bestLambda
}

// ProjectCloudTriangle projects every point of the cloud onto the triangle
// Q0-Q1-Q2. The Gram system of the triangle is factorized once and shared by
// all points; a factorization failure means the triangle is degenerate.
func ProjectCloudTriangle(cloud []r3.Vector, q0, q1, q2 r3.Vector) ([]r3.Vector, [][3]float64, error) {
	e0 := q1.Sub(q0)
	e1 := q2.Sub(q0)

	gram := mat.NewSymDense(2, []float64{
		e0.Norm2(), e0.Dot(e1),
		e0.Dot(e1), e1.Norm2(),
	})
	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, nil, errors.New("triangle Gram matrix is not positive definite")
	}

	proj := make([]r3.Vector, len(cloud))
	lambdas := make([][3]float64, len(cloud))
	rhs := mat.NewVecDense(2, nil)
	var uv mat.VecDense
	for i, p := range cloud {
		d := p.Sub(q0)
		rhs.SetVec(0, e0.Dot(d))
		rhs.SetVec(1, e1.Dot(d))
		if err := chol.SolveVecTo(&uv, rhs); err != nil {
			return nil, nil, errors.Wrap(err, "cannot solve triangle Gram system")
		}

		u := uv.AtVec(0)
		v := uv.AtVec(1)
		lambda := [3]float64{1 - u - v, u, v}
		if lambda[0] >= -AbsTolerance && lambda[1] >= -AbsTolerance && lambda[2] >= -AbsTolerance {
			proj[i] = q0.Add(e0.Mul(u)).Add(e1.Mul(v))
			lambdas[i] = lambda
			continue
		}
		proj[i], lambdas[i] = restrictPointTriangle(p, q0, q1, q2)
	}
	return proj, lambdas, nil
}

// ProjectPointSimplex returns the closest point on a convex polygon given as
// an ordered vertex list of length n >= 2, with the barycentric coordinates
// of the projection. For n > 3 the polygon is fan-triangulated from the
// first vertex and the closest candidate wins.
func ProjectPointSimplex(p r3.Vector, verts []r3.Vector) (r3.Vector, []float64, error) {
	switch n := len(verts); {
	case n < 2:
		return r3.Vector{}, nil, errors.Errorf("simplex needs at least 2 vertices, got %d", n)
	case n == 2:
		x, l := ProjectPointSegment(p, verts[0], verts[1])
		return x, l[:], nil
	case n == 3:
		x, l := ProjectPointTriangle(p, verts[0], verts[1], verts[2])
		return x, l[:], nil
	}

	var bestX r3.Vector
	bestLambda := make([]float64, len(verts))
	bestDist := -1.0
	for i := 1; i < len(verts)-1; i++ {
		x, l := ProjectPointTriangle(p, verts[0], verts[i], verts[i+1])
		if dist := p.Sub(x).Norm2(); bestDist < 0 || dist < bestDist {
			bestDist = dist
			bestX = x
			for k := range bestLambda {
				bestLambda[k] = 0
			}
			bestLambda[0] = l[0]
			bestLambda[i] = l[1]
			bestLambda[i+1] = l[2]
		}
	}
	return bestX, bestLambda, nil
}

// ReconstructPointFromBarycentricSegment evaluates the point of the segment
// with the given barycentric coordinates.
func ReconstructPointFromBarycentricSegment(q0, q1 r3.Vector, lambda [2]float64) r3.Vector {
	return q0.Mul(lambda[0]).Add(q1.Mul(lambda[1]))
}

// ReconstructPointFromBarycentricTriangle evaluates the point of the
// triangle with the given barycentric coordinates.
func ReconstructPointFromBarycentricTriangle(q0, q1, q2 r3.Vector, lambda [3]float64) r3.Vector {
	return q0.Mul(lambda[0]).Add(q1.Mul(lambda[1])).Add(q2.Mul(lambda[2]))
}

// ReconstructPointFromBarycentricSimplex evaluates the point of the polygon
// with the given barycentric coordinates.
func ReconstructPointFromBarycentricSimplex(verts []r3.Vector, lambda []float64) r3.Vector {
	var x r3.Vector
	for i, v := range verts {
		x = x.Add(v.Mul(lambda[i]))
	}
	return x
}
