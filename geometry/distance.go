package geometry

import (
	"github.com/golang/geo/r3"
)

// DistancePointLine returns the distance of a point from the line through Q
// with unit direction n.
func DistancePointLine(p, q, n r3.Vector) float64 {
	return p.Sub(ProjectPointLine(p, q, n)).Norm()
}

// DistancePointPlane returns the distance of a point from the plane through
// Q with unit normal n.
func DistancePointPlane(p, q, n r3.Vector) float64 {
	return p.Sub(ProjectPointPlane(p, q, n)).Norm()
}

// DistancePointSegment returns the distance of a point from the segment
// Q0-Q1 and the barycentric coordinates of the closest point.
func DistancePointSegment(p, q0, q1 r3.Vector) (float64, [2]float64) {
	x, lambda := ProjectPointSegment(p, q0, q1)
	return p.Sub(x).Norm(), lambda
}

// DistancePointTriangle returns the distance of a point from the triangle
// Q0-Q1-Q2 and the barycentric coordinates of the closest point.
func DistancePointTriangle(p, q0, q1, q2 r3.Vector) (float64, [3]float64) {
	x, lambda := ProjectPointTriangle(p, q0, q1, q2)
	return p.Sub(x).Norm(), lambda
}

// DistanceCloudTriangle returns the distance of every point of the cloud
// from the triangle Q0-Q1-Q2 together with the barycentric coordinates of
// the closest points.
func DistanceCloudTriangle(cloud []r3.Vector, q0, q1, q2 r3.Vector) ([]float64, [][3]float64, error) {
	proj, lambdas, err := ProjectCloudTriangle(cloud, q0, q1, q2)
	if err != nil {
		return nil, nil, err
	}
	dists := make([]float64, len(cloud))
	for i := range cloud {
		dists[i] = cloud[i].Sub(proj[i]).Norm()
	}
	return dists, lambdas, nil
}

// DistancePointSimplex returns the distance of a point from a convex polygon
// and the barycentric coordinates of the closest point.
func DistancePointSimplex(p r3.Vector, verts []r3.Vector) (float64, []float64, error) {
	x, lambda, err := ProjectPointSimplex(p, verts)
	if err != nil {
		return 0, nil, err
	}
	return p.Sub(x).Norm(), lambda, nil
}
