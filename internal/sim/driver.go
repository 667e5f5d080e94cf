// Package sim drives an adaptive DDE integration: it alternates trial steps of
// a Kernel with the step-size controller and the short-delay corrector until a
// target time is reached or the step floor is hit.
package sim

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/dde"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/san-kum/ddesim/internal/sim"

// Driver owns one integration: its parameters, its step state and the kernel.
// It is not safe for concurrent use.
type Driver struct {
	kernel Kernel
	params control.Params
	state  control.State

	ctl  *control.StepController
	corr *control.Corrector

	phase   Phase
	t       float64
	reached bool
	stats   Stats

	logger    *slog.Logger
	tracer    trace.Tracer
	observers []Observer
}

type Option func(*Driver)

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observers = append(d.observers, o) }
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Driver) { d.tracer = t }
}

// New validates p against the kernel and prepares a driver. The parameters are
// copied; later changes to p do not affect the driver.
func New(k Kernel, p control.Params, opts ...Option) (*Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.CheckDim(k.Dim()); err != nil {
		return nil, err
	}

	d := &Driver{
		kernel: k,
		params: p,
		phase:  Stepping,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.state = control.NewState(&d.params)
	d.ctl = control.NewStepController(&d.params)
	d.corr = control.NewCorrector(&d.params)
	d.stats.NextStep = d.state.Dt
	d.stats.MinPWSFactor = d.state.PWSFactor

	for _, w := range d.params.Warnings() {
		d.logger.Warn(w)
	}
	return d, nil
}

func (d *Driver) Phase() Phase           { return d.phase }
func (d *Driver) Params() control.Params { return d.params }
func (d *Driver) State() control.State   { return d.state }
func (d *Driver) Successful() bool       { return d.state.Successful }
func (d *Driver) Kernel() Kernel         { return d.kernel }
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

// Time is the last target reached, or the kernel time before the first call.
func (d *Driver) Time() float64 {
	if d.reached {
		return d.t
	}
	return d.kernel.CurrentTime()
}

func (d *Driver) Stats() Stats {
	s := d.stats
	if ec, ok := d.kernel.(evaluationCounter); ok {
		s.Evaluations = ec.Evaluations()
	}
	return s
}

// Integrate advances to target and returns the state there. A step floor
// violation is returned as an error when RaiseException is set; otherwise it is
// logged and a NaN state of the system dimension is returned. A right-hand
// side that fails to evaluate is always an error.
func (d *Driver) Integrate(target float64) (dde.State, error) {
	res := d.Solve(target)
	if res.Err == nil {
		return res.State, nil
	}
	if errors.Is(res.Err, dde.ErrStepTooSmall) && !d.params.RaiseException {
		d.logger.Warn("integration failed, returning NaN state",
			"target", target, "error", res.Err)
		return res.State, nil
	}
	return nil, res.Err
}

// Solve is Integrate without the RaiseException policy: failures are always
// reported in the Result.
func (d *Driver) Solve(target float64) Result {
	_, span := d.tracer.Start(context.Background(), "sim.Integrate",
		trace.WithAttributes(attribute.Float64("target", target)))
	defer span.End()

	if len(d.kernel.History()) < 2 {
		span.RecordError(dde.ErrNoHistory)
		span.SetStatus(codes.Error, dde.ErrNoHistory.Error())
		return Result{Time: target, State: dde.NaNState(d.kernel.Dim()), Err: dde.ErrNoHistory}
	}

	before := d.stats
	err := d.advance(target)
	span.SetAttributes(
		attribute.Int("steps.accepted", d.stats.Accepted-before.Accepted),
		attribute.Int("steps.rejected", d.stats.Rejected-before.Rejected),
		attribute.Int("steps.throttled", d.stats.Throttled-before.Throttled),
		attribute.Float64("dt", d.state.Dt),
	)

	if err != nil {
		var small *dde.StepTooSmallError
		if errors.As(err, &small) {
			small.Time = d.kernel.CurrentTime()
		}
		d.phase = Failed
		d.state.Successful = false
		d.emit(Event{Kind: EventFailure, Time: d.kernel.CurrentTime(), Dt: d.state.Dt, PWSFactor: d.state.PWSFactor})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Time: target, State: dde.NaNState(d.kernel.Dim()), Err: err}
	}

	hist := d.kernel.History()
	j := bracketFor(hist, target)
	y := d.kernel.Interpolate(target, hist[j-1], hist[j])

	d.phase = Done
	d.t = target
	d.reached = true
	return Result{Time: target, State: y}
}

func (d *Driver) advance(target float64) error {
	for d.kernel.CurrentTime() < target {
		d.state.Successful = false
		for !d.state.Successful {
			d.phase = Stepping
			t0 := d.kernel.CurrentTime()
			h := d.state.Effective()

			shortfall := d.kernel.AttemptStep(h)
			if err := d.evaluationErr(); err != nil {
				return err
			}
			if shortfall > 0 {
				d.phase = Correcting
				outcome, iterations, err := d.corr.Resolve(d.kernel, &d.state, shortfall)
				d.stats.Corrections++
				d.stats.Iterations += iterations
				d.stats.MinPWSFactor = math.Min(d.stats.MinPWSFactor, d.state.PWSFactor)
				if evalErr := d.evaluationErr(); evalErr != nil {
					return evalErr
				}
				if err != nil {
					return err
				}
				if outcome == control.Retry {
					d.stats.Throttled++
					d.logger.Debug("throttled step for short delay",
						"t", t0, "shortfall", shortfall, "pws_factor", d.state.PWSFactor)
					d.emit(Event{Kind: EventThrottle, Time: t0, Step: h, Dt: d.state.Dt,
						PWSFactor: d.state.PWSFactor, Iterations: iterations})
					continue
				}
				d.emit(Event{Kind: EventConverged, Time: t0, Step: h, Dt: d.state.Dt,
					PWSFactor: d.state.PWSFactor, Iterations: iterations})
			}

			trial := d.kernel.Trial()
			p := d.ctl.NormalizedError(d.kernel.ErrorEstimate(), trial.State)
			decision, err := d.ctl.Adjust(&d.state, p)
			if decision == control.Accept {
				d.kernel.CommitStep()
				d.phase = Accepted
				d.stats.Accepted++
				d.stats.LastStep = h
				d.emit(Event{Kind: EventAccept, Time: t0, Step: h, Dt: d.state.Dt,
					PWSFactor: d.state.PWSFactor, ErrorNorm: p, State: trial.State})
			} else {
				d.stats.Rejected++
				d.logger.Debug("rejected step", "t", t0, "step", h, "error", p, "dt", d.state.Dt)
				d.emit(Event{Kind: EventReject, Time: t0, Step: h, Dt: d.state.Dt,
					PWSFactor: d.state.PWSFactor, ErrorNorm: p})
			}
			d.stats.NextStep = d.state.Dt
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// evaluationErr stops the loop before a trial built from a failed right-hand
// side can reach the step controller.
func (d *Driver) evaluationErr() error {
	if f, ok := d.kernel.(evaluationFailer); ok {
		return f.Err()
	}
	return nil
}

func (d *Driver) emit(ev Event) {
	for _, o := range d.observers {
		o.OnEvent(ev)
	}
}

// bracketFor picks the accepted interval holding t. Targets at or beyond the
// second to last point use the newest bracket.
func bracketFor(hist []dde.PastPoint, t float64) int {
	n := len(hist)
	if t >= hist[n-2].Time {
		return n - 1
	}
	j := sort.Search(n, func(k int) bool { return hist[k].Time >= t })
	if j < 1 {
		return 1
	}
	return j
}
