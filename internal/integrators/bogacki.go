package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// Bogacki-Shampine 3(2) coefficients
var (
	bsA2 = 1.0 / 2.0
	bsA3 = 3.0 / 4.0

	bsB1 = 2.0 / 9.0
	bsB2 = 1.0 / 3.0
	bsB3 = 4.0 / 9.0

	// third order minus embedded second order solution
	bsE1 = 2.0/9.0 - 7.0/24.0
	bsE2 = 1.0/3.0 - 1.0/4.0
	bsE3 = 4.0/9.0 - 1.0/3.0
	bsE4 = -1.0 / 8.0
)

// BogackiShampine is a step kernel for DDEs. The solution history is a list of
// anchors joined by cubic Hermite polynomials. A trial step is held as a
// pending anchor after the last accepted one until it is committed; lookups
// that land beyond the last accepted anchor use the pending anchor, which is
// what makes repeated trials a fixed-point iteration.
type BogackiShampine struct {
	sys dde.System
	n   int

	past     []dde.PastPoint
	trial    dde.PastPoint
	hasTrial bool

	errEst    dde.State
	shortfall float64
	evals     int

	scratch dde.State
}

func NewBogackiShampine(sys dde.System) *BogackiShampine {
	n := sys.Dim()
	return &BogackiShampine{
		sys:     sys,
		n:       n,
		errEst:  make(dde.State, n),
		scratch: make(dde.State, n),
	}
}

func (b *BogackiShampine) Dim() int { return b.n }

// AddPastPoint appends an anchor to the initial history. Times must increase.
func (b *BogackiShampine) AddPastPoint(t float64, state, diff dde.State) error {
	if len(state) != b.n || len(diff) != b.n {
		return fmt.Errorf("%w: past point has %d/%d components, system has %d",
			dde.ErrDimensionMismatch, len(state), len(diff), b.n)
	}
	if len(b.past) > 0 && t <= b.past[len(b.past)-1].Time {
		return fmt.Errorf("past point at t=%g does not follow t=%g", t, b.past[len(b.past)-1].Time)
	}
	b.past = append(b.past, dde.PastPoint{Time: t, State: state.Clone(), Diff: diff.Clone()})
	return nil
}

// ConstantPast sets y(t) = state for all t <= t0. span is the length of the
// constant segment and should cover the largest delay.
func (b *BogackiShampine) ConstantPast(state dde.State, t0, span float64) error {
	if span <= 0 {
		span = 1
	}
	zero := make(dde.State, b.n)
	if err := b.AddPastPoint(t0-span, state, zero); err != nil {
		return err
	}
	return b.AddPastPoint(t0, state, zero)
}

func (b *BogackiShampine) CurrentTime() float64 {
	if len(b.past) == 0 {
		return math.Inf(-1)
	}
	return b.past[len(b.past)-1].Time
}

func (b *BogackiShampine) History() []dde.PastPoint { return b.past }

// Trial returns the pending anchor, or the last accepted one if there is none.
func (b *BogackiShampine) Trial() dde.PastPoint {
	if b.hasTrial {
		return b.trial
	}
	return b.past[len(b.past)-1]
}

func (b *BogackiShampine) ErrorEstimate() dde.State { return b.errEst }

// Err reports the first evaluation failure of a dde.Fallible system.
func (b *BogackiShampine) Err() error {
	if f, ok := b.sys.(dde.Fallible); ok {
		return f.Err()
	}
	return nil
}

// Evaluations counts right-hand side evaluations.
func (b *BogackiShampine) Evaluations() int { return b.evals }

// At implements dde.Past for the right-hand side during a trial.
func (b *BogackiShampine) At(t float64, i int) float64 {
	last := len(b.past) - 1
	front := b.past[last]
	if t <= front.Time {
		j := bracket(b.past, t)
		return hermite(t, b.past[j-1], b.past[j], i)
	}

	b.shortfall = math.Max(b.shortfall, t-front.Time)
	if b.hasTrial && b.trial.Time > front.Time {
		return hermite(t, front, b.trial, i)
	}
	return hermite(t, b.past[last-1], front, i)
}

func (b *BogackiShampine) derive(t float64, y dde.State) dde.State {
	dy := make(dde.State, b.n)
	b.sys.Derive(t, y, b, dy)
	b.evals++
	return dy
}

// AttemptStep computes a trial of size h from the last accepted anchor and
// returns how far the right-hand side reached beyond that anchor (0 if never).
func (b *BogackiShampine) AttemptStep(h float64) float64 {
	front := b.past[len(b.past)-1]
	t, y, k1 := front.Time, front.State, front.Diff
	b.shortfall = 0

	for i := 0; i < b.n; i++ {
		b.scratch[i] = y[i] + h*bsA2*k1[i]
	}
	k2 := b.derive(t+bsA2*h, b.scratch)

	for i := 0; i < b.n; i++ {
		b.scratch[i] = y[i] + h*bsA3*k2[i]
	}
	k3 := b.derive(t+bsA3*h, b.scratch)

	yNew := make(dde.State, b.n)
	for i := 0; i < b.n; i++ {
		yNew[i] = y[i] + h*(bsB1*k1[i]+bsB2*k2[i]+bsB3*k3[i])
	}
	k4 := b.derive(t+h, yNew)

	for i := 0; i < b.n; i++ {
		b.errEst[i] = h * (bsE1*k1[i] + bsE2*k2[i] + bsE3*k3[i] + bsE4*k4[i])
	}

	b.trial = dde.PastPoint{Time: t + h, State: yNew, Diff: k4}
	b.hasTrial = true
	return b.shortfall
}

// CommitStep appends the pending trial to the history.
func (b *BogackiShampine) CommitStep() {
	if !b.hasTrial {
		return
	}
	b.past = append(b.past, b.trial)
	b.hasTrial = false
}

func (b *BogackiShampine) Interpolate(t float64, a, c dde.PastPoint) dde.State {
	return Interpolate(t, a, c)
}

// StateAt returns the solution at any time covered by the accepted history.
func (b *BogackiShampine) StateAt(t float64) dde.State {
	j := bracket(b.past, t)
	return Interpolate(t, b.past[j-1], b.past[j])
}
