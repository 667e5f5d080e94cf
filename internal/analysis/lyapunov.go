package analysis

import (
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// Separation returns the Euclidean distance between two sampled runs.
func Separation(a, b []dde.State) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		sep := 0.0
		for i := range a[k] {
			diff := b[k][i] - a[k][i]
			sep += diff * diff
		}
		out[k] = math.Sqrt(sep)
	}
	return out
}

// LyapunovExponent estimates the largest Lyapunov exponent from two runs of
// the same system started a small distance apart. It fits a line to
// ln(separation) over the samples before the separation first reaches
// saturation; a positive slope indicates sensitive dependence. Both runs must
// share everything except the initial state.
func LyapunovExponent(times []float64, a, b []dde.State, saturation float64) float64 {
	sep := Separation(a, b)
	xs := make([]float64, 0, len(sep))
	ys := make([]float64, 0, len(sep))
	for k, s := range sep {
		if k >= len(times) || s >= saturation || math.IsNaN(s) {
			break
		}
		if s <= 0 {
			continue
		}
		xs = append(xs, times[k])
		ys = append(ys, math.Log(s))
	}
	slope, ok := fitSlope(xs, ys)
	if !ok {
		return 0
	}
	return slope
}

// fitSlope is the least-squares slope of ys against xs.
func fitSlope(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	if len(xs) < 2 {
		return 0, false
	}
	mx, my := Mean(xs), Mean(ys)
	var sxy, sxx float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
	}
	if sxx == 0 || n == 0 {
		return 0, false
	}
	return sxy / sxx, true
}
