// Package equation builds DDE systems from text. A Definition lists the
// equations of the right-hand side, named parameters and helper expressions;
// Compile turns it into a dde.System.
//
// Expressions use the expr language. Available names:
//
//	t           current time
//	y[i]        current state component i
//	past(s, i)  component i of the solution at time s <= t
//	<param>     any parameter from the definition
//	<helper>    any helper, evaluated before the equations
//
// Example (Mackey-Glass):
//
//	name: mackey-glass
//	params: {beta: 0.2, gamma: 0.1, n: 10, tau: 17}
//	max_delay: 17
//	helpers:
//	  - {symbol: lag, expr: "past(t - tau, 0)"}
//	equations:
//	  - "beta * lag / (1 + lag ** n) - gamma * y[0]"
//	initial: [1.0]
package equation

import (
	"fmt"
	"os"

	"github.com/san-kum/ddesim/internal/dde"
	"gopkg.in/yaml.v3"
)

type HelperDef struct {
	Symbol string `yaml:"symbol"`
	Expr   string `yaml:"expr"`
}

type Definition struct {
	Name      string             `yaml:"name"`
	Params    map[string]float64 `yaml:"params,omitempty"`
	MaxDelay  float64            `yaml:"max_delay,omitempty"`
	Helpers   []HelperDef        `yaml:"helpers,omitempty"`
	Equations []string           `yaml:"equations"`
	Initial   []float64          `yaml:"initial,omitempty"`
}

// FromFunc produces exactly n equations, the i-th given by f(i).
func FromFunc(n int, f func(i int) string) []string {
	eqs := make([]string, n)
	for i := range eqs {
		eqs[i] = f(i)
	}
	return eqs
}

func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse system definition: %w", err)
	}
	return &def, nil
}

func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

func (d *Definition) Save(path string) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var reserved = map[string]bool{"t": true, "y": true, "past": true}

// Validate checks the shape of the definition without compiling expressions.
func (d *Definition) Validate() error {
	var problems []string
	if len(d.Equations) == 0 {
		problems = append(problems, "at least one equation is required")
	}
	if len(d.Initial) != 0 && len(d.Initial) != len(d.Equations) {
		problems = append(problems, fmt.Sprintf("initial has %d values for %d equations", len(d.Initial), len(d.Equations)))
	}
	if d.MaxDelay < 0 {
		problems = append(problems, fmt.Sprintf("max_delay must be >= 0, got %g", d.MaxDelay))
	}
	for name := range d.Params {
		if reserved[name] {
			problems = append(problems, fmt.Sprintf("parameter %q uses a reserved name", name))
		}
	}
	for _, h := range d.Helpers {
		switch {
		case h.Symbol == "":
			problems = append(problems, "helper without symbol")
		case reserved[h.Symbol]:
			problems = append(problems, fmt.Sprintf("helper %q uses a reserved name", h.Symbol))
		case hasParam(d.Params, h.Symbol):
			problems = append(problems, fmt.Sprintf("helper %q shadows a parameter", h.Symbol))
		}
	}
	if len(problems) > 0 {
		return &dde.ConfigError{Problems: problems}
	}
	return nil
}

func hasParam(params map[string]float64, name string) bool {
	_, ok := params[name]
	return ok
}
