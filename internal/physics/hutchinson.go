package physics

import (
	"fmt"

	"github.com/san-kum/ddesim/internal/dde"
)

// Hutchinson is the delayed logistic equation y' = r·y·(1 - y(t-tau)/k).
// It oscillates around k once r·tau exceeds pi/2.
type Hutchinson struct{ r, k, tau float64 }

func NewHutchinson() *Hutchinson { return &Hutchinson{1.8, 1.0, 1.0} }

func (h *Hutchinson) Dim() int                { return 1 }
func (h *Hutchinson) MaxDelay() float64       { return h.tau }
func (h *Hutchinson) DefaultState() dde.State { return dde.State{0.5} }

func (h *Hutchinson) Derive(t float64, y dde.State, past dde.Past, dy dde.State) {
	dy[0] = h.r * y[0] * (1 - past.At(t-h.tau, 0)/h.k)
}

func (h *Hutchinson) GetParams() map[string]float64 {
	return map[string]float64{"r": h.r, "k": h.k, "tau": h.tau}
}

func (h *Hutchinson) SetParam(name string, v float64) error {
	switch name {
	case "r":
		h.r = v
	case "k":
		if v == 0 {
			return fmt.Errorf("physics: k must be non-zero")
		}
		h.k = v
	case "tau":
		if err := nonNegativeDelay(name, v); err != nil {
			return err
		}
		h.tau = v
	default:
		return unknownParam(name)
	}
	return nil
}
