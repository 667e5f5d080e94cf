package control

import (
	"errors"
	"testing"

	"github.com/san-kum/ddesim/internal/dde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultParams_Valid(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Empty(t, p.Warnings())
	assert.Equal(t, 1.1, p.DecreaseThreshold)
	assert.Equal(t, 10, p.PWSMaxIterations)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		problem string
	}{
		{"negative atol", func(p *Params) { p.ATol = Scalar(-1) }, "atol[0] must be >= 0"},
		{"negative rtol component", func(p *Params) { p.RTol = Tolerance{1e-3, -1e-3} }, "rtol[1] must be >= 0"},
		{"empty rtol", func(p *Params) { p.RTol = nil }, "rtol must not be empty"},
		{"first below min", func(p *Params) { p.MinStep = 2; p.FirstStep = 1 }, "bogus step parameters"},
		{"first above max", func(p *Params) { p.FirstStep = 20 }, "bogus step parameters"},
		{"negative min step", func(p *Params) { p.MinStep = -1 }, "min_step must be >= 0"},
		{"decrease threshold below 1", func(p *Params) { p.DecreaseThreshold = 0.9 }, "decrease_threshold must be >= 1"},
		{"increase threshold above 1", func(p *Params) { p.IncreaseThreshold = 1.5 }, "increase_threshold must be <= 1"},
		{"safety above 1", func(p *Params) { p.SafetyFactor = 1.2 }, "safety_factor must be <= 1"},
		{"max factor below 1", func(p *Params) { p.MaxFactor = 0.5 }, "max_factor must be >= 1"},
		{"min factor above 1", func(p *Params) { p.MinFactor = 2 }, "min_factor must be <= 1"},
		{"negative pws atol", func(p *Params) { p.PWSATol = Scalar(-0.1) }, "pws_atol[0] must be >= 0"},
		{"zero pws iterations", func(p *Params) { p.PWSMaxIterations = 0 }, "pws_max_iterations must be > 0"},
		{"adaption factor 1", func(p *Params) { p.PWSAdaptionFactor = 1 }, "pws_adaption_factor must be < 1"},
		{"adaption factor 0", func(p *Params) { p.PWSAdaptionFactor = 0 }, "pws_adaption_factor must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, dde.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestParams_ValidateCollectsAllProblems(t *testing.T) {
	p := DefaultParams()
	p.ATol = Scalar(-1)
	p.PWSMaxIterations = -3

	err := p.Validate()
	var cfgErr *dde.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Len(t, cfgErr.Problems, 2)
}

func TestParams_ZeroToleranceWarnsButValidates(t *testing.T) {
	p := DefaultParams()
	p.ATol = Scalar(0)
	p.RTol = Tolerance{0, 0}

	require.NoError(t, p.Validate())
	assert.Len(t, p.Warnings(), 1)
}

func TestParams_CheckDim(t *testing.T) {
	p := DefaultParams()
	p.ATol = Tolerance{1e-6, 1e-6, 1e-6}

	assert.NoError(t, p.CheckDim(3))
	assert.True(t, errors.Is(p.CheckDim(2), dde.ErrDimensionMismatch))
}

func TestParams_CheckFloor(t *testing.T) {
	p := DefaultParams()
	p.MinStep = 1.0

	assert.NoError(t, p.CheckFloor(&State{Dt: 1.0, PWSFactor: 1.0}))

	err := p.CheckFloor(&State{Dt: 1.5, PWSFactor: 0.5})
	var small *dde.StepTooSmallError
	require.True(t, errors.As(err, &small))
	assert.Equal(t, 1.5, small.Dt)
	assert.Equal(t, 0.5, small.PWSFactor)
}

func TestTolerance_YAML(t *testing.T) {
	var doc struct {
		A Tolerance `yaml:"a"`
		B Tolerance `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 1.0e-6\nb: [0.1, 0.2]\n"), &doc))
	assert.Equal(t, Tolerance{1e-6}, doc.A)
	assert.Equal(t, Tolerance{0.1, 0.2}, doc.B)
	assert.Equal(t, 0.2, doc.B.At(1))
	assert.Equal(t, 1e-6, doc.A.At(5))

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "a: 1e-06\nb:\n    - 0.1\n    - 0.2\n", string(out))
}

func TestTolerance_YAMLRejectsMapping(t *testing.T) {
	var doc struct {
		A Tolerance `yaml:"a"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("a: {x: 1}\n"), &doc))
}
