package physics

import (
	"math"

	"github.com/san-kum/ddesim/internal/dde"
)

// MackeyGlass is y' = beta·y(t-tau) / (1 + y(t-tau)^n) - gamma·y.
type MackeyGlass struct{ beta, gamma, n, tau float64 }

func NewMackeyGlass() *MackeyGlass { return &MackeyGlass{0.2, 0.1, 10, 17} }

func (m *MackeyGlass) Dim() int                { return 1 }
func (m *MackeyGlass) MaxDelay() float64       { return m.tau }
func (m *MackeyGlass) DefaultState() dde.State { return dde.State{1.0} }

func (m *MackeyGlass) Derive(t float64, y dde.State, past dde.Past, dy dde.State) {
	lag := past.At(t-m.tau, 0)
	dy[0] = m.beta*lag/(1+math.Pow(lag, m.n)) - m.gamma*y[0]
}

func (m *MackeyGlass) GetParams() map[string]float64 {
	return map[string]float64{"beta": m.beta, "gamma": m.gamma, "n": m.n, "tau": m.tau}
}

func (m *MackeyGlass) SetParam(name string, v float64) error {
	switch name {
	case "beta":
		m.beta = v
	case "gamma":
		m.gamma = v
	case "n":
		m.n = v
	case "tau":
		if err := nonNegativeDelay(name, v); err != nil {
			return err
		}
		m.tau = v
	default:
		return unknownParam(name)
	}
	return nil
}
