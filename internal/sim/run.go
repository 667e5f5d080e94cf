package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// Result is the outcome of one Solve call. On failure State is all NaN and
// Err says why.
type Result struct {
	Time  float64
	State dde.State
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// Trajectory is the solution sampled at a sequence of output times.
type Trajectory struct {
	Times  []float64
	States []dde.State
	Stats  Stats
	// Failed is set when sampling stopped at a step floor violation.
	Failed bool
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Component returns the i-th component across all samples.
func (tr *Trajectory) Component(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, s := range tr.States {
		out[k] = s[i]
	}
	return out
}

// Run integrates to each of times in turn. times must be non-decreasing. The
// context is checked between samples; a sample that ends in a NaN state stops
// the run and is kept as the last sample.
func Run(ctx context.Context, d *Driver, times []float64) (*Trajectory, error) {
	tr := &Trajectory{
		Times:  make([]float64, 0, len(times)),
		States: make([]dde.State, 0, len(times)),
	}

	for i, t := range times {
		if i > 0 && t < times[i-1] {
			return nil, fmt.Errorf("sample times must not decrease: %g after %g", t, times[i-1])
		}
	}

	for _, t := range times {
		select {
		case <-ctx.Done():
			tr.Stats = d.Stats()
			return tr, ctx.Err()
		default:
		}

		y, err := d.Integrate(t)
		if err != nil {
			tr.Stats = d.Stats()
			return tr, fmt.Errorf("integrate to t=%g: %w", t, err)
		}

		tr.Times = append(tr.Times, t)
		tr.States = append(tr.States, y.Clone())
		if d.Phase() == Failed {
			tr.Failed = true
			break
		}
	}

	tr.Stats = d.Stats()
	return tr, nil
}

// SampleTimes returns start, start+step, ... up to and including end.
func SampleTimes(start, end, step float64) []float64 {
	if step <= 0 || end < start {
		return nil
	}
	n := int((end-start)/step+1e-9) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	if math.Abs(out[n-1]-end) < 1e-9*step {
		out[n-1] = end
	}
	return out
}
