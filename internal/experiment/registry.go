package experiment

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/equation"
	"github.com/san-kum/ddesim/internal/physics"
)

// Model is a system that knows its largest delay and a sensible initial state.
type Model interface {
	dde.System
	dde.Delayed
	DefaultState() dde.State
}

type Registry struct {
	models map[string]func() Model
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]func() Model)}

	r.Register("mackey-glass", func() Model { return physics.NewMackeyGlass() })
	r.Register("hutchinson", func() Model { return physics.NewHutchinson() })
	r.Register("delayed-decay", func() Model { return physics.NewDelayedDecay() })
	r.Register("oscillator", func() Model { return physics.NewOscillator() })
	r.Register("constant", func() Model { return physics.NewConstant(1) })

	return r
}

func (r *Registry) Register(name string, fn func() Model) {
	r.models[name] = fn
}

// GetModel returns a fresh instance of a registered model. Names ending in
// .yaml or .yml are loaded and compiled as system definition files.
func (r *Registry) GetModel(name string) (Model, error) {
	if ext := filepath.Ext(name); ext == ".yaml" || ext == ".yml" {
		def, err := equation.Load(name)
		if err != nil {
			return nil, err
		}
		sys, err := def.Compile()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return sys, nil
	}

	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
