// Package automation runs batches of experiments: scripted scenarios,
// parameter sweeps, Monte Carlo trials and re-runs on file change.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/san-kum/ddesim/internal/config"
	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/experiment"
	"github.com/san-kum/ddesim/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted simulation sequence.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. Preset, when set, is the base
// configuration and the other fields override it.
type ScenarioStep struct {
	Model       string             `yaml:"model"`
	Preset      string             `yaml:"preset,omitempty"`
	Duration    float64            `yaml:"duration,omitempty"`
	SampleDt    float64            `yaml:"sample_dt,omitempty"`
	Initial     []float64          `yaml:"initial,omitempty"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Integration *control.Params    `yaml:"integration,omitempty"`
	SaveAs      string             `yaml:"save_as,omitempty"`
}

// Outcome is the result of one scenario step.
type Outcome struct {
	Config     *config.Config
	Trajectory *sim.Trajectory
	SaveAs     string
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

// Config resolves the configuration of the step.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Model, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %s/%s", s.Model, s.Preset)
		}
	}
	cfg.Model = s.Model
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.SampleDt > 0 {
		cfg.SampleDt = s.SampleDt
	}
	if len(s.Initial) > 0 {
		cfg.Initial = append([]float64(nil), s.Initial...)
	}
	if len(s.Params) > 0 {
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(s.Params))
		}
		for k, v := range s.Params {
			cfg.Params[k] = v
		}
	}
	if s.Integration != nil {
		cfg.Integration = *s.Integration
	}
	return cfg, nil
}

// RunScenario executes the steps in order and stops at the first error.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, logger *slog.Logger) ([]Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]Outcome, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		logger.Info("running scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "model", step.Model)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		tr, err := runOnce(ctx, registry, cfg, sim.WithLogger(logger))
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, Outcome{Config: cfg, Trajectory: tr, SaveAs: step.SaveAs})
	}
	return results, nil
}

// runOnce builds a fresh model for cfg and runs it.
func runOnce(ctx context.Context, registry *experiment.Registry, cfg *config.Config, opts ...sim.Option) (*sim.Trajectory, error) {
	m, err := registry.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(m, opts...); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	tr, err := exp.Run(ctx)
	if err != nil {
		return tr, fmt.Errorf("run: %w", err)
	}
	return tr, nil
}

// bounded reports whether every component of y is finite and below limit.
func bounded(y dde.State, limit float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.Abs(v) > limit {
			return false
		}
	}
	return true
}

func final(tr *sim.Trajectory) dde.State {
	if tr == nil || tr.Len() == 0 {
		return nil
	}
	return tr.States[tr.Len()-1]
}
