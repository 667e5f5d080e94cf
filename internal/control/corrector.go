package control

import (
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// Stepper is the part of a step kernel the corrector drives.
type Stepper interface {
	// AttemptStep computes a trial of size h and returns the past-within-step
	// shortfall, 0 if none.
	AttemptStep(h float64) float64
	// Trial returns the newest (pending) history point.
	Trial() dde.PastPoint
}

type Outcome int

const (
	// Proceed means the trial is resolved and goes on to error evaluation.
	Proceed Outcome = iota
	// Retry means the throttle was tightened and the trial must restart.
	Retry
)

// Corrector resolves trials whose delay is shorter than the step. It owns
// State.PWSFactor and never touches State.Dt.
type Corrector struct {
	params *Params
}

func NewCorrector(p *Params) *Corrector {
	return &Corrector{params: p}
}

// Negligible reports whether the shortfall is small against the throttled step.
func (c *Corrector) Negligible(st *State, shortfall float64) bool {
	return shortfall < c.params.PWSAdaptionFactor*st.Effective()
}

func (c *Corrector) Throttle(st *State) error {
	st.PWSFactor *= c.params.PWSAdaptionFactor
	return c.params.CheckFloor(st)
}

// Converged compares two successive iterates componentwise. The bound is
// inclusive, so identical iterates converge even with zero tolerances; NaN
// never converges.
func (c *Corrector) Converged(prev, next dde.State) bool {
	for i := range next {
		tol := c.params.PWSATol.At(i) + math.Abs(c.params.PWSRTol.At(i)*next[i])
		if !(math.Abs(next[i]-prev[i]) <= tol) {
			return false
		}
	}
	return true
}

// Relax loosens the throttle after convergence within count iterations. Only
// convergence in fewer than 1/PWSAdaptionFactor iterations counts as fast.
func (c *Corrector) Relax(st *State, count int) {
	if float64(count) < 1/c.params.PWSAdaptionFactor {
		st.PWSFactor = math.Min(1.0, st.PWSFactor/c.params.PWSAdaptionFactor)
	}
}

// Resolve handles a trial that reported the given shortfall. It returns the
// outcome and the number of fixed-point iterations performed.
func (c *Corrector) Resolve(k Stepper, st *State, shortfall float64) (Outcome, int, error) {
	if c.Negligible(st, shortfall) {
		return Retry, 0, c.Throttle(st)
	}

	h := st.Effective()
	for count := 1; count <= c.params.PWSMaxIterations; count++ {
		prev := k.Trial().State.Clone()
		k.AttemptStep(h)
		if c.Converged(prev, k.Trial().State) {
			c.Relax(st, count)
			return Proceed, count, nil
		}
	}

	return Retry, c.params.PWSMaxIterations, c.Throttle(st)
}
