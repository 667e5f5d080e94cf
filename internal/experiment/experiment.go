package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/integrators"
	"github.com/san-kum/ddesim/internal/sim"
)

// Experiment wires a model, a kernel with constant initial history and a
// driver from one run configuration.
type Experiment struct {
	cfg    *config.Config
	model  Model
	kernel *integrators.BogackiShampine
	driver *sim.Driver
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(m Model, opts ...sim.Option) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	if len(e.cfg.Params) > 0 {
		c, ok := m.(dde.Configurable)
		if !ok {
			return fmt.Errorf("model does not take parameters")
		}
		for name, v := range e.cfg.Params {
			if err := c.SetParam(name, v); err != nil {
				return err
			}
		}
	}

	y0 := m.DefaultState()
	if len(e.cfg.Initial) > 0 {
		if len(e.cfg.Initial) != m.Dim() {
			return fmt.Errorf("%w: initial state has %d components, model has %d",
				dde.ErrDimensionMismatch, len(e.cfg.Initial), m.Dim())
		}
		y0 = dde.State(e.cfg.Initial).Clone()
	}

	kernel := integrators.NewBogackiShampine(m)
	if err := kernel.ConstantPast(y0, 0, m.MaxDelay()); err != nil {
		return err
	}

	driver, err := sim.New(kernel, e.cfg.Integration, opts...)
	if err != nil {
		return err
	}

	e.model, e.kernel, e.driver = m, kernel, driver
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Trajectory, error) {
	if e.driver == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return sim.Run(ctx, e.driver, sim.SampleTimes(0, e.cfg.Duration, e.cfg.SampleDt))
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Model() Model           { return e.model }
func (e *Experiment) Driver() *sim.Driver    { return e.driver }
