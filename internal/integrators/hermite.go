package integrators

import (
	"sort"

	"github.com/san-kum/ddesim/internal/dde"
)

// hermite evaluates component i of the cubic Hermite polynomial through the
// anchors a and b at time t. Outside [a.Time, b.Time] it extrapolates.
func hermite(t float64, a, b dde.PastPoint, i int) float64 {
	h := b.Time - a.Time
	s := (t - a.Time) / h
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	return h00*a.State[i] + h10*h*a.Diff[i] + h01*b.State[i] + h11*h*b.Diff[i]
}

// Interpolate returns the full state at t from the bracket (a, b).
func Interpolate(t float64, a, b dde.PastPoint) dde.State {
	out := make(dde.State, len(a.State))
	for i := range out {
		out[i] = hermite(t, a, b, i)
	}
	return out
}

// bracket returns the index j such that points[j-1].Time <= t <= points[j].Time,
// clamped to [1, len(points)-1]. points must hold at least two anchors.
func bracket(points []dde.PastPoint, t float64) int {
	j := sort.Search(len(points), func(k int) bool { return points[k].Time >= t })
	if j < 1 {
		return 1
	}
	if j > len(points)-1 {
		return len(points) - 1
	}
	return j
}
