package physics

import "github.com/san-kum/ddesim/internal/dde"

// DelayedDecay is y' = -a·y(t-tau). Solutions decay for a·tau < pi/2.
type DelayedDecay struct{ a, tau float64 }

func NewDelayedDecay() *DelayedDecay { return &DelayedDecay{1.0, 1.0} }

func (d *DelayedDecay) Dim() int                { return 1 }
func (d *DelayedDecay) MaxDelay() float64       { return d.tau }
func (d *DelayedDecay) DefaultState() dde.State { return dde.State{1.0} }

func (d *DelayedDecay) Derive(t float64, _ dde.State, past dde.Past, dy dde.State) {
	dy[0] = -d.a * past.At(t-d.tau, 0)
}

func (d *DelayedDecay) GetParams() map[string]float64 {
	return map[string]float64{"a": d.a, "tau": d.tau}
}

func (d *DelayedDecay) SetParam(name string, v float64) error {
	switch name {
	case "a":
		d.a = v
	case "tau":
		if err := nonNegativeDelay(name, v); err != nil {
			return err
		}
		d.tau = v
	default:
		return unknownParam(name)
	}
	return nil
}

// Constant is y' = 0 in any dimension. It never looks into the past.
type Constant struct{ n int }

func NewConstant(n int) *Constant {
	if n < 1 {
		n = 1
	}
	return &Constant{n}
}

func (c *Constant) Dim() int                { return c.n }
func (c *Constant) MaxDelay() float64       { return 0 }
func (c *Constant) DefaultState() dde.State { return make(dde.State, c.n) }

func (c *Constant) Derive(_ float64, _ dde.State, _ dde.Past, dy dde.State) {
	for i := range dy {
		dy[i] = 0
	}
}
