package automation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/san-kum/ddesim/internal/analysis"
	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/sim"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// ParameterSweep runs the base configuration once per parameter value.
// Runs are independent and execute on up to Workers goroutines.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
	// Component is the state component whose peaks are recorded.
	Component int
	// Transient is the fraction of samples skipped before peaks are taken.
	Transient float64
	Workers   int
}

type SweepResult struct {
	ParamValue float64
	FinalState dde.State
	Peaks      []float64
	Failed     bool
	Stats      sim.Stats
}

// Values returns the parameter values of the sweep.
func (s *ParameterSweep) Values() []float64 {
	if s.NumSteps <= 1 {
		return []float64{s.ParamMin}
	}
	step := (s.ParamMax - s.ParamMin) / float64(s.NumSteps-1)
	out := make([]float64, s.NumSteps)
	for i := range out {
		out[i] = s.ParamMin + float64(i)*step
	}
	out[len(out)-1] = s.ParamMax
	return out
}

// RunSweep executes the sweep. Results are in parameter order. A run that
// hits the step floor is reported as Failed, not as an error.
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	if sweep.Base == nil {
		return nil, fmt.Errorf("sweep has no base configuration")
	}
	if _, err := registry.GetModel(sweep.Base.Model); err != nil {
		return nil, err
	}

	values := sweep.Values()
	results := make([]SweepResult, len(values))
	quiet := sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(sweep.Workers))
	for i, v := range values {
		g.Go(func() error {
			cfg := sweep.Base.Clone()
			if cfg.Params == nil {
				cfg.Params = make(map[string]float64, 1)
			}
			cfg.Params[sweep.ParamName] = v

			tr, err := runOnce(ctx, registry, cfg, quiet)
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sweep.ParamName, v, err)
			}

			res := SweepResult{ParamValue: v, FinalState: final(tr), Failed: tr.Failed, Stats: tr.Stats}
			if !tr.Failed && sweep.Component < len(res.FinalState) {
				skip := int(sweep.Transient * float64(tr.Len()))
				res.Peaks = analysis.DistinctPeaks(tr.Component(sweep.Component), skip, 1e-3)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Bifurcation converts sweep results to diagram points.
func Bifurcation(results []SweepResult) []analysis.BifurcationPoint {
	out := make([]analysis.BifurcationPoint, 0, len(results))
	for _, r := range results {
		out = append(out, analysis.BifurcationPoint{Param: r.ParamValue, Values: r.Peaks})
	}
	return out
}

// MonteCarloConfig perturbs the initial state of Base uniformly by up to
// Perturbation per component.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Seed         int64
	Workers      int
}

type MonteCarloResult struct {
	TrialID    int
	InitState  dde.State
	FinalState dde.State
	// Stable is set when the run completed and stayed bounded.
	Stable bool
}

// RunMonteCarlo executes the trials. Trial i uses its own generator seeded
// from Seed+i, so results do not depend on scheduling.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	if cfg.Base == nil {
		return nil, fmt.Errorf("monte carlo has no base configuration")
	}
	base, err := registry.GetModel(cfg.Base.Model)
	if err != nil {
		return nil, err
	}
	y0 := base.DefaultState()
	if len(cfg.Base.Initial) > 0 {
		y0 = dde.State(cfg.Base.Initial).Clone()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	results := make([]MonteCarloResult, cfg.NumTrials)
	quiet := sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg.Workers))
	for trial := 0; trial < cfg.NumTrials; trial++ {
		rng := rand.New(rand.NewSource(seed + int64(trial)))
		init := make(dde.State, len(y0))
		for i, v := range y0 {
			init[i] = v + (rng.Float64()-0.5)*2*cfg.Perturbation
		}

		g.Go(func() error {
			run := cfg.Base.Clone()
			run.Initial = init.Clone()
			tr, err := runOnce(ctx, registry, run, quiet)
			if err != nil {
				return fmt.Errorf("trial %d: %w", trial, err)
			}
			last := final(tr)
			results[trial] = MonteCarloResult{
				TrialID:    trial,
				InitState:  init,
				FinalState: last,
				Stable:     !tr.Failed && bounded(last, 1e6),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}

func workers(n int) int {
	if n <= 0 {
		return defaultWorkers
	}
	return n
}
