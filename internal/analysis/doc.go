// Package analysis characterizes sampled DDE solutions.
//
// All functions work on uniformly sampled data as produced by sim.Run:
//
//   - [DominantPeriod]: period of the strongest oscillation via FFT
//   - [LyapunovExponent]: growth rate of the separation of two runs
//   - [DelayEmbedding]: the (x(t), x(t-lag)) portrait of one component
//   - [Peaks]: local maxima, the raw material of a bifurcation diagram
//
// # Chaos Detection
//
// Run the same model twice from initial states that differ by d0 and
// compare the sampled component:
//
//	lambda := analysis.LyapunovExponent(times, a, b, 0.1)
//	if lambda > 0 {
//	    // nearby solutions diverge
//	}
package analysis
