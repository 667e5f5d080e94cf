package sim_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/integrators"
	"github.com/san-kum/ddesim/internal/sim"
)

type constant struct{}

func (constant) Dim() int { return 1 }
func (constant) Derive(_ float64, _ dde.State, _ dde.Past, dy dde.State) {
	dy[0] = 0
}

type decay struct{ rate float64 }

func (d decay) Dim() int { return 1 }
func (d decay) Derive(_ float64, y dde.State, _ dde.Past, dy dde.State) {
	dy[0] = -d.rate * y[0]
}

// feedback is y'(t) = -gain * y(t - tau).
type feedback struct{ gain, tau float64 }

func (f feedback) Dim() int { return 1 }
func (f feedback) Derive(t float64, _ dde.State, past dde.Past, dy dde.State) {
	dy[0] = -f.gain * past.At(t-f.tau, 0)
}

type recorder struct{ events []sim.Event }

func (r *recorder) OnEvent(ev sim.Event) { r.events = append(r.events, ev) }

func (r *recorder) count(kind sim.EventKind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newKernel(sys dde.System, y0 float64) *integrators.BogackiShampine {
	k := integrators.NewBogackiShampine(sys)
	Expect(k.ConstantPast(dde.State{y0}, 0, 1)).To(Succeed())
	return k
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var _ = Describe("Driver", func() {
	var (
		params control.Params
		logs   *bytes.Buffer
	)

	BeforeEach(func() {
		params = control.DefaultParams()
		params.ATol = control.Scalar(0)
		params.RTol = control.Scalar(1e-5)
		params.FirstStep = 1.0
		params.MinStep = 1e-10
		params.MaxStep = 10.0
		logs = &bytes.Buffer{}
	})

	Describe("a system without delay contribution", func() {
		It("reaches the target exactly with a finite state", func() {
			d, err := sim.New(newKernel(constant{}, 2), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			y, err := d.Integrate(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Time()).To(Equal(5.0))
			Expect(d.Phase()).To(Equal(sim.Done))
			Expect(d.Successful()).To(BeTrue())
			Expect(y.IsValid()).To(BeTrue())
			Expect(y[0]).To(BeNumerically("~", 2, 1e-12))
			Expect(logs.String()).NotTo(ContainSubstring("step size under min_step"))
			Expect(d.Stats().Throttled).To(BeZero())
		})

		It("tracks exponential decay to the requested tolerance", func() {
			d, err := sim.New(newKernel(decay{rate: 1}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			y, err := d.Integrate(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Time()).To(Equal(5.0))
			Expect(y[0]).To(BeNumerically("~", math.Exp(-5), 1e-3*math.Exp(-5)))
			Expect(d.Stats().Corrections).To(BeZero())
		})
	})

	Describe("reported time", func() {
		It("equals every target, including repeated and earlier ones", func() {
			d, err := sim.New(newKernel(decay{rate: 0.5}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			for _, target := range []float64{0.5, 1.7, 3, 3, 2.5, 4.25} {
				y, err := d.Integrate(target)
				Expect(err).NotTo(HaveOccurred())
				Expect(d.Time()).To(Equal(target))
				Expect(y[0]).To(BeNumerically("~", math.Exp(-0.5*target), 1e-4))
			}
		})
	})

	Describe("a delay shorter than the first step", func() {
		It("engages the corrector and still completes", func() {
			rec := &recorder{}
			k := newKernel(feedback{gain: 4, tau: 0.25}, 1)
			d, err := sim.New(k, params, sim.WithLogger(quietLogger(logs)), sim.WithObserver(rec))
			Expect(err).NotTo(HaveOccurred())

			y, err := d.Integrate(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Time()).To(Equal(5.0))
			Expect(y.IsValid()).To(BeTrue())

			stats := d.Stats()
			Expect(stats.MinPWSFactor).To(BeNumerically("<", 1.0))
			Expect(stats.Throttled).To(BeNumerically(">", 0))
			Expect(rec.count(sim.EventThrottle)).To(Equal(stats.Throttled))
			Expect(rec.count(sim.EventAccept)).To(Equal(stats.Accepted))
		})
	})

	Describe("the step floor", func() {
		BeforeEach(func() {
			params.MinStep = 1.0
			params.FirstStep = 1.0
		})

		It("reports StepTooSmall instead of looping when raising", func() {
			params.RaiseException = true
			d, err := sim.New(newKernel(decay{rate: 1000}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			y, err := d.Integrate(5)
			Expect(err).To(MatchError(dde.ErrStepTooSmall))
			Expect(y).To(BeNil())
			Expect(d.Phase()).To(Equal(sim.Failed))

			var small *dde.StepTooSmallError
			Expect(errors.As(err, &small)).To(BeTrue())
			Expect(small.MinStep).To(Equal(1.0))
			Expect(small.Time).To(Equal(0.0))
		})

		It("warns and returns a NaN state when not raising", func() {
			d, err := sim.New(newKernel(decay{rate: 1000}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			y, err := d.Integrate(5)
			Expect(err).NotTo(HaveOccurred())
			Expect(y).To(HaveLen(1))
			Expect(math.IsNaN(y[0])).To(BeTrue())
			Expect(d.Successful()).To(BeFalse())
			Expect(logs.String()).To(ContainSubstring("step size under min_step"))
		})

		It("reports the failure through Solve regardless of the policy", func() {
			d, err := sim.New(newKernel(decay{rate: 1000}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			res := d.Solve(5)
			Expect(res.OK()).To(BeFalse())
			Expect(res.Err).To(MatchError(dde.ErrStepTooSmall))
			Expect(res.State.IsValid()).To(BeFalse())
		})
	})

	Describe("zero tolerances", func() {
		It("warn at configuration time but do not block integration", func() {
			params.ATol = control.Scalar(0)
			params.RTol = control.Scalar(0)
			d, err := sim.New(newKernel(constant{}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())
			Expect(logs.String()).To(ContainSubstring("atol and rtol are both 0"))

			y, err := d.Integrate(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(y[0]).To(BeNumerically("~", 1, 1e-12))
			Expect(d.Time()).To(Equal(2.0))
		})
	})

	Describe("Run", func() {
		It("samples the solution at every output time", func() {
			d, err := sim.New(newKernel(decay{rate: 1}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			times := sim.SampleTimes(0, 2, 0.25)
			Expect(times).To(HaveLen(9))

			tr, err := sim.Run(context.Background(), d, times)
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Len()).To(Equal(9))
			Expect(tr.Failed).To(BeFalse())
			for i, t := range tr.Times {
				Expect(tr.States[i][0]).To(BeNumerically("~", math.Exp(-t), 1e-4))
			}
			Expect(tr.Stats.Accepted).To(BeNumerically(">", 0))
		})

		It("stops when the context is cancelled", func() {
			d, err := sim.New(newKernel(decay{rate: 1}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			tr, err := sim.Run(ctx, d, []float64{1, 2})
			Expect(err).To(MatchError(context.Canceled))
			Expect(tr.Len()).To(BeZero())
		})

		It("keeps the failed sample and stops", func() {
			params.MinStep = 1.0
			d, err := sim.New(newKernel(decay{rate: 1000}, 1), params, sim.WithLogger(quietLogger(logs)))
			Expect(err).NotTo(HaveOccurred())

			tr, err := sim.Run(context.Background(), d, []float64{1, 2, 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Failed).To(BeTrue())
			Expect(tr.Len()).To(Equal(1))
		})
	})
})
