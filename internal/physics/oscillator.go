package physics

import "github.com/san-kum/ddesim/internal/dde"

// Oscillator is a damped harmonic oscillator with delayed position feedback:
//
//	x'' + 2·zeta·omega·x' + omega²·x = -k·x(t-tau)
//
// State is [x, v].
type Oscillator struct{ omega, zeta, k, tau float64 }

func NewOscillator() *Oscillator { return &Oscillator{1.0, 0.05, 0.5, 2.0} }

func (o *Oscillator) Dim() int                { return 2 }
func (o *Oscillator) MaxDelay() float64       { return o.tau }
func (o *Oscillator) DefaultState() dde.State { return dde.State{1.0, 0.0} }

func (o *Oscillator) Derive(t float64, y dde.State, past dde.Past, dy dde.State) {
	dy[0] = y[1]
	dy[1] = -o.omega*o.omega*y[0] - 2*o.zeta*o.omega*y[1] - o.k*past.At(t-o.tau, 0)
}

// Energy is the undelayed oscillator energy, for monitoring only.
func (o *Oscillator) Energy(y dde.State) float64 {
	return 0.5*y[1]*y[1] + 0.5*o.omega*o.omega*y[0]*y[0]
}

func (o *Oscillator) GetParams() map[string]float64 {
	return map[string]float64{"omega": o.omega, "zeta": o.zeta, "k": o.k, "tau": o.tau}
}

func (o *Oscillator) SetParam(name string, v float64) error {
	switch name {
	case "omega":
		o.omega = v
	case "zeta":
		o.zeta = v
	case "k":
		o.k = v
	case "tau":
		if err := nonNegativeDelay(name, v); err != nil {
			return err
		}
		o.tau = v
	default:
		return unknownParam(name)
	}
	return nil
}
