// Package metrics exports driver decisions as Prometheus metrics.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/san-kum/ddesim/internal/sim"
)

const (
	metricsNamespace = "ddesim"
	driverSubsystem  = "driver"
)

// StepMetrics observes a Driver and records its decisions. One instance may
// observe several drivers as long as each run uses a distinct model label.
type StepMetrics struct {
	model string

	EventsTotal         *prometheus.CounterVec
	StepSize            *prometheus.HistogramVec
	ErrorNorm           *prometheus.HistogramVec
	CorrectorIterations *prometheus.HistogramVec
	PWSFactor           *prometheus.GaugeVec
	SimTime             *prometheus.GaugeVec
}

// NewStepMetrics registers the step metrics with reg. A nil reg uses the
// default Prometheus registerer.
func NewStepMetrics(reg prometheus.Registerer, model string) *StepMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &StepMetrics{
		model: model,
		EventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "events_total",
				Help:      "Driver decisions by model and kind",
			},
			[]string{"model", "kind"},
		),
		StepSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "step_size",
				Help:      "Size of accepted steps",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 9),
			},
			[]string{"model"},
		),
		ErrorNorm: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "error_norm",
				Help:      "Normalized local error of every estimated trial",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 1, 2, 5, 10},
			},
			[]string{"model", "kind"},
		),
		CorrectorIterations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "corrector_iterations",
				Help:      "Fixed-point iterations used per short-delay correction",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
			[]string{"model", "outcome"},
		),
		PWSFactor: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "pws_factor",
				Help:      "Current step throttle factor applied by the corrector",
			},
			[]string{"model"},
		),
		SimTime: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: driverSubsystem,
				Name:      "sim_time",
				Help:      "Simulation time of the newest accepted point",
			},
			[]string{"model"},
		),
	}
}

func (m *StepMetrics) OnEvent(ev sim.Event) {
	m.EventsTotal.WithLabelValues(m.model, ev.Kind.String()).Inc()
	if !math.IsNaN(ev.PWSFactor) && ev.PWSFactor > 0 {
		m.PWSFactor.WithLabelValues(m.model).Set(ev.PWSFactor)
	}

	switch ev.Kind {
	case sim.EventAccept:
		m.StepSize.WithLabelValues(m.model).Observe(ev.Step)
		m.ErrorNorm.WithLabelValues(m.model, ev.Kind.String()).Observe(ev.ErrorNorm)
		m.SimTime.WithLabelValues(m.model).Set(ev.Time + ev.Step)
	case sim.EventReject:
		if !math.IsNaN(ev.ErrorNorm) && !math.IsInf(ev.ErrorNorm, 0) {
			m.ErrorNorm.WithLabelValues(m.model, ev.Kind.String()).Observe(ev.ErrorNorm)
		}
	case sim.EventConverged, sim.EventThrottle:
		m.CorrectorIterations.WithLabelValues(m.model, ev.Kind.String()).Observe(float64(ev.Iterations))
	}
}

var _ sim.Observer = (*StepMetrics)(nil)
