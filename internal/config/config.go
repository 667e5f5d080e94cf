package config

import (
	"fmt"
	"os"

	"github.com/san-kum/ddesim/internal/control"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel    = "mackey-glass"
	DefaultDuration = 300.0
	DefaultSampleDt = 0.5
)

// Config describes one run. Model is a registered model name or the path of a
// system definition file.
type Config struct {
	Model       string             `yaml:"model"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Initial     []float64          `yaml:"initial,omitempty"`
	Duration    float64            `yaml:"duration"`
	SampleDt    float64            `yaml:"sample_dt"`
	Integration control.Params     `yaml:"integration"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:       DefaultModel,
		Duration:    DefaultDuration,
		SampleDt:    DefaultSampleDt,
		Integration: control.DefaultParams(),
	}
}

// Load reads a run file over the defaults, so absent keys keep default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model is required")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("config: duration must be positive, got %g", c.Duration)
	}
	if c.SampleDt <= 0 || c.SampleDt > c.Duration {
		return fmt.Errorf("config: sample_dt must be in (0, duration], got %g", c.SampleDt)
	}
	return c.Integration.Validate()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.Initial = append([]float64(nil), c.Initial...)
	out.Integration.ATol = append(control.Tolerance(nil), c.Integration.ATol...)
	out.Integration.RTol = append(control.Tolerance(nil), c.Integration.RTol...)
	out.Integration.PWSATol = append(control.Tolerance(nil), c.Integration.PWSATol...)
	out.Integration.PWSRTol = append(control.Tolerance(nil), c.Integration.PWSRTol...)
	return &out
}
