package equation

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/integrators"
	"github.com/san-kum/ddesim/internal/physics"
	"github.com/san-kum/ddesim/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mackeyGlassYAML = `
name: mackey-glass
params: {beta: 0.2, gamma: 0.1, n: 10, tau: 17}
max_delay: 17
helpers:
  - {symbol: growth, expr: "beta * lag / (1 + lag ** n)"}
  - {symbol: lag, expr: "past(t - tau, 0)"}
equations:
  - "growth - gamma * y[0]"
initial: [1.0]
`

type fixedPast struct{ v []float64 }

func (f fixedPast) At(_ float64, i int) float64 { return f.v[i] }

func TestCompile_MatchesBuiltinModel(t *testing.T) {
	def, err := Parse([]byte(mackeyGlassYAML))
	require.NoError(t, err)
	sys, err := def.Compile()
	require.NoError(t, err)

	assert.Equal(t, "mackey-glass", sys.Name())
	assert.Equal(t, 1, sys.Dim())
	assert.Equal(t, 17.0, sys.MaxDelay())
	assert.Equal(t, dde.State{1.0}, sys.DefaultState())
	assert.Equal(t, []string{"lag", "growth"}, sys.HelperOrder())

	builtin := physics.NewMackeyGlass()
	for _, c := range []struct{ y, lag float64 }{{1.0, 1.0}, {0.5, 1.3}, {1.2, 0.1}} {
		want := make(dde.State, 1)
		builtin.Derive(3, dde.State{c.y}, fixedPast{[]float64{c.lag}}, want)

		got := make(dde.State, 1)
		sys.Derive(3, dde.State{c.y}, fixedPast{[]float64{c.lag}}, got)
		assert.InDelta(t, want[0], got[0], 1e-12, "y=%v lag=%v", c.y, c.lag)
	}
}

func TestCompile_CyclicHelpers(t *testing.T) {
	def := &Definition{
		Name: "cyclic",
		Helpers: []HelperDef{
			{Symbol: "a", Expr: "b + 1"},
			{Symbol: "b", Expr: "a * 2"},
		},
		Equations: []string{"a"},
	}
	_, err := def.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, dde.ErrCyclicHelpers)
	assert.Contains(t, err.Error(), "a, b")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{
			name: "no equations",
			def:  Definition{},
			want: "at least one equation",
		},
		{
			name: "unknown identifier",
			def:  Definition{Equations: []string{"-k * y[0]"}},
			want: "equation 0",
		},
		{
			name: "syntax error in helper",
			def: Definition{
				Helpers:   []HelperDef{{Symbol: "h", Expr: "1 +"}},
				Equations: []string{"h"},
			},
			want: `helper "h"`,
		},
		{
			name: "reserved helper",
			def: Definition{
				Helpers:   []HelperDef{{Symbol: "t", Expr: "1"}},
				Equations: []string{"0"},
			},
			want: "reserved",
		},
		{
			name: "helper shadows parameter",
			def: Definition{
				Params:    map[string]float64{"k": 1},
				Helpers:   []HelperDef{{Symbol: "k", Expr: "2"}},
				Equations: []string{"k"},
			},
			want: "shadows",
		},
		{
			name: "initial length",
			def:  Definition{Equations: []string{"0", "0"}, Initial: []float64{1}},
			want: "initial has 1 values for 2 equations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.def.Compile()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSystem_IntegerExpression(t *testing.T) {
	def := &Definition{Equations: []string{"0", "1"}}
	sys, err := def.Compile()
	require.NoError(t, err)

	dy := make(dde.State, 2)
	sys.Derive(0, dde.State{0, 0}, nil, dy)
	assert.Equal(t, dde.State{0, 1}, dy)
}

func TestSystem_EvalReportsErrors(t *testing.T) {
	def := &Definition{Equations: []string{"past(t - 1, 3)"}}
	sys, err := def.Compile()
	require.NoError(t, err)

	_, err = sys.Eval(0, dde.State{1}, fixedPast{[]float64{1}})
	assert.ErrorContains(t, err, "out of range")

	require.NoError(t, sys.Err())
	dy := make(dde.State, 1)
	sys.Derive(0, dde.State{1}, fixedPast{[]float64{1}}, dy)
	assert.True(t, math.IsNaN(dy[0]))

	_, err = sys.Eval(0, dde.State{1, 2}, nil)
	assert.ErrorIs(t, err, dde.ErrDimensionMismatch)
}

func TestSystem_DeriveKeepsFirstError(t *testing.T) {
	def := &Definition{Equations: []string{"past(t - 1, 0)"}}
	sys, err := def.Compile()
	require.NoError(t, err)

	dy := make(dde.State, 1)
	sys.Derive(0, dde.State{1}, fixedPast{[]float64{4}}, dy)
	require.NoError(t, sys.Err())
	assert.Equal(t, 4.0, dy[0])

	sys.Derive(2, dde.State{1}, nil, dy)
	assert.True(t, math.IsNaN(dy[0]))
	err = sys.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, dde.ErrInvalidState)
	assert.Contains(t, err.Error(), "y[0] at t=2")
	assert.Contains(t, err.Error(), "no history")

	sys.Derive(3, dde.State{1}, fixedPast{[]float64{4}}, dy)
	assert.Equal(t, err, sys.Err())
}

func TestSystem_EvaluationErrorStopsIntegration(t *testing.T) {
	for _, raise := range []bool{true, false} {
		t.Run(fmt.Sprintf("raise=%v", raise), func(t *testing.T) {
			def := &Definition{Equations: []string{"-past(t - 1, 3)"}, MaxDelay: 1}
			sys, err := def.Compile()
			require.NoError(t, err)

			k := integrators.NewBogackiShampine(sys)
			require.NoError(t, k.ConstantPast(dde.State{1}, 0, 1))
			p := control.DefaultParams()
			p.RaiseException = raise
			d, err := sim.New(k, p, sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			require.NoError(t, err)

			y, err := d.Integrate(3)
			require.Error(t, err)
			assert.ErrorIs(t, err, dde.ErrInvalidState)
			assert.Contains(t, err.Error(), "out of range")
			assert.Nil(t, y)
			assert.False(t, d.Successful())
			assert.Equal(t, sim.Failed, d.Phase())
			assert.Zero(t, d.Stats().Accepted)
			assert.Len(t, k.History(), 2)
		})
	}
}

func TestSystem_SetParam(t *testing.T) {
	def := &Definition{
		Params:    map[string]float64{"k": 2, "a": 1},
		Equations: []string{"-k * y[0]"},
	}
	sys, err := def.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "k"}, sys.ParamNames())

	require.NoError(t, sys.SetParam("k", 5))
	dy, err := sys.Eval(0, dde.State{2}, nil)
	require.NoError(t, err)
	assert.Equal(t, -10.0, dy[0])
	assert.Equal(t, 5.0, sys.GetParams()["k"])

	assert.ErrorIs(t, sys.SetParam("missing", 1), dde.ErrUnknownParam)
}

func TestFromFunc(t *testing.T) {
	// a ring of delayed couplings
	eqs := FromFunc(3, func(i int) string {
		return fmt.Sprintf("past(t - tau, %d) - y[%d]", (i+1)%3, i)
	})
	require.Len(t, eqs, 3)

	def := &Definition{Params: map[string]float64{"tau": 1}, Equations: eqs}
	sys, err := def.Compile()
	require.NoError(t, err)

	dy, err := sys.Eval(0, dde.State{1, 2, 3}, fixedPast{[]float64{10, 20, 30}})
	require.NoError(t, err)
	assert.Equal(t, dde.State{19, 28, 7}, dy)
}

func TestDefinition_SaveLoad(t *testing.T) {
	def, err := Parse([]byte(mackeyGlassYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mg.yaml")
	require.NoError(t, def.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, def, loaded)
}
