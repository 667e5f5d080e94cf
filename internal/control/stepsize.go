package control

import (
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// State is the step-size state of one integration.
type State struct {
	Dt        float64
	PWSFactor float64
	// Successful reports whether the last trial step was accepted.
	Successful bool
}

func NewState(p *Params) State {
	return State{Dt: p.FirstStep, PWSFactor: 1.0}
}

// Effective is the step actually handed to the kernel.
func (s State) Effective() float64 {
	return s.PWSFactor * s.Dt
}

type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// StepController is the only writer of State.Dt.
type StepController struct {
	params *Params
}

func NewStepController(p *Params) *StepController {
	return &StepController{params: p}
}

// NormalizedError is max_i |e_i| / (atol_i + rtol_i*|y_i|). NaN propagates.
func (c *StepController) NormalizedError(e, y dde.State) float64 {
	p := 0.0
	for i := range e {
		scale := c.params.ATol.At(i) + c.params.RTol.At(i)*math.Abs(y[i])
		p = math.Max(p, math.Abs(e[i])/scale)
	}
	return p
}

// Adjust decides on the trial with normalized error p and updates st.Dt.
// A rejection shrinks the step and re-checks the floor; an acceptance may grow
// it. Growth is capped at MaxStep; the I-controller update alone would let Dt
// exceed it.
func (c *StepController) Adjust(st *State, p float64) (Decision, error) {
	if p > c.params.DecreaseThreshold {
		st.Dt *= math.Max(c.params.SafetyFactor*math.Pow(p, -1/ErrorOrder), c.params.MinFactor)
		return Reject, c.params.CheckFloor(st)
	}

	st.Successful = true
	if p < c.params.IncreaseThreshold {
		st.Dt *= math.Min(c.params.SafetyFactor*math.Pow(p, -1/(ErrorOrder+1)), c.params.MaxFactor)
		st.Dt = math.Min(st.Dt, c.params.MaxStep)
		return Accept, c.params.CheckFloor(st)
	}
	return Accept, nil
}
