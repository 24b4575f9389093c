package geometry

// Barycentric flags encode where a projected point landed: 0 means the
// interior, a positive value v+1 means vertex v, a negative value -(e+1)
// means the open edge starting at vertex e.

// ConvertBarycentricToFlagSegment classifies the barycentric coordinates of
// a point on a segment.
func ConvertBarycentricToFlagSegment(lambda [2]float64) int {
	if lambda[0] >= 1-AbsTolerance {
		return 1
	}
	if lambda[1] >= 1-AbsTolerance {
		return 2
	}
	return 0
}

// ConvertBarycentricToFlagTriangle classifies the barycentric coordinates of
// a point on a triangle.
func ConvertBarycentricToFlagTriangle(lambda [3]float64) int {
	return ConvertBarycentricToFlagSimplex(lambda[:])
}

// ConvertBarycentricToFlagSimplex classifies the barycentric coordinates of
// a point on a convex polygon. Edge e connects vertices e and e+1.
func ConvertBarycentricToFlagSimplex(lambda []float64) int {
	n := len(lambda)

	positive := make([]int, 0, 2)
	for i, l := range lambda {
		if l > AbsTolerance {
			positive = append(positive, i)
			if len(positive) > 2 {
				return 0
			}
		}
	}

	if len(positive) == 1 {
		return positive[0] + 1
	}
	if len(positive) == 2 && (positive[1]-positive[0] == 1 || (positive[0] == 0 && positive[1] == n-1)) {
		edge := positive[0]
		if positive[0] == 0 && positive[1] == n-1 {
			edge = n - 1
		}
		return -(edge + 1)
	}
	return 0
}
