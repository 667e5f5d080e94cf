// Package physics provides built-in delay differential equation models.
//
// Each model implements [dde.System] and [dde.Delayed]:
//
//   - [MackeyGlass]: blood cell production, chaotic for long delays
//   - [Hutchinson]: delayed logistic growth
//   - [DelayedDecay]: linear negative feedback y' = -a·y(t-τ)
//   - [Oscillator]: damped oscillator with delayed position feedback
//   - [Constant]: y' = 0, useful as a baseline
//
// All models except Constant implement [dde.Configurable] for runtime
// parameter adjustment:
//
//	mg := physics.NewMackeyGlass()
//	if err := mg.SetParam("tau", 23); err != nil {
//	    return err
//	}
package physics

import (
	"fmt"

	"github.com/san-kum/ddesim/internal/dde"
)

func unknownParam(name string) error {
	return fmt.Errorf("%w: %q", dde.ErrUnknownParam, name)
}

func nonNegativeDelay(name string, v float64) error {
	if v < 0 {
		return fmt.Errorf("physics: %s must be >= 0, got %g", name, v)
	}
	return nil
}
