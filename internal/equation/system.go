package equation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/san-kum/ddesim/internal/dde"
	"github.com/san-kum/ddesim/internal/helpers"
)

var nan = math.NaN()

// compiled is one expression with the identifiers it mentions.
type compiled struct {
	symbol  string
	source  string
	program *vm.Program
	idents  map[string]struct{}
}

func (c *compiled) References(symbol string) bool {
	_, ok := c.idents[symbol]
	return ok
}

type identCollector struct{ names map[string]struct{} }

func (c *identCollector) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok {
		c.names[id.Value] = struct{}{}
	}
}

func identifiers(source string) (map[string]struct{}, error) {
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	c := &identCollector{names: make(map[string]struct{})}
	ast.Walk(&tree.Node, c)
	return c.names, nil
}

// System is a compiled Definition. It implements dde.System, dde.Delayed and
// dde.Configurable. A System is not safe for concurrent use.
type System struct {
	name     string
	n        int
	maxDelay float64
	initial  dde.State

	params    map[string]float64
	helpers   []*compiled
	equations []*compiled

	env     map[string]any
	y       []float64
	past    dde.Past
	machine vm.VM
	err     error
}

// Compile checks and compiles every expression. Helpers are reordered so each
// is evaluated after the helpers it uses; a cycle among them is an error.
func (d *Definition) Compile() (*System, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		name:     d.Name,
		n:        len(d.Equations),
		maxDelay: d.MaxDelay,
		params:   make(map[string]float64, len(d.Params)),
		y:        make([]float64, len(d.Equations)),
	}
	s.initial = make(dde.State, s.n)
	copy(s.initial, d.Initial)

	s.env = map[string]any{"t": 0.0, "y": s.y}
	for k, v := range d.Params {
		s.params[k] = v
		s.env[k] = v
	}
	for _, h := range d.Helpers {
		s.env[h.Symbol] = 0.0
	}

	pending := make([]helpers.Helper, 0, len(d.Helpers))
	for _, h := range d.Helpers {
		idents, err := identifiers(h.Expr)
		if err != nil {
			return nil, fmt.Errorf("helper %q: %w", h.Symbol, err)
		}
		pending = append(pending, helpers.Helper{
			Symbol: h.Symbol,
			Expr:   &compiled{symbol: h.Symbol, source: h.Expr, idents: idents},
		})
	}
	ordered, err := helpers.Sort(pending)
	if err != nil {
		return nil, err
	}

	opts := []expr.Option{
		expr.Env(s.env),
		expr.AsFloat64(),
		expr.Function("past", s.lookup, new(func(float64, int) float64)),
	}
	for _, h := range ordered {
		c := h.Expr.(*compiled)
		if c.program, err = expr.Compile(c.source, opts...); err != nil {
			return nil, fmt.Errorf("helper %q: %w", c.symbol, err)
		}
		s.helpers = append(s.helpers, c)
	}
	for i, src := range d.Equations {
		program, err := expr.Compile(src, opts...)
		if err != nil {
			return nil, fmt.Errorf("equation %d: %w", i, err)
		}
		s.equations = append(s.equations, &compiled{symbol: fmt.Sprintf("y[%d]", i), source: src, program: program})
	}

	return s, nil
}

func (s *System) lookup(args ...any) (any, error) {
	if s.past == nil {
		return nil, errors.New("past: no history available")
	}
	t, i := args[0].(float64), args[1].(int)
	if i < 0 || i >= s.n {
		return nil, fmt.Errorf("past: component %d out of range [0, %d)", i, s.n)
	}
	return s.past.At(t, i), nil
}

func (s *System) Name() string            { return s.name }
func (s *System) Dim() int                { return s.n }
func (s *System) MaxDelay() float64       { return s.maxDelay }
func (s *System) DefaultState() dde.State { return s.initial.Clone() }

// HelperOrder returns the helper symbols in evaluation order.
func (s *System) HelperOrder() []string {
	out := make([]string, len(s.helpers))
	for i, h := range s.helpers {
		out[i] = h.symbol
	}
	return out
}

// Derive evaluates helpers then equations. An evaluation error yields NaN
// and is kept; see Err.
func (s *System) Derive(t float64, y dde.State, past dde.Past, dy dde.State) {
	s.past = past
	copy(s.y, y)
	s.env["t"] = t

	for _, h := range s.helpers {
		s.env[h.symbol] = s.eval(t, h)
	}
	for i, eq := range s.equations {
		dy[i] = s.eval(t, eq)
	}
}

// Err returns the first evaluation error of Derive, wrapping
// dde.ErrInvalidState, or nil.
func (s *System) Err() error { return s.err }

// Eval evaluates the right-hand side once and reports evaluation errors.
func (s *System) Eval(t float64, y dde.State, past dde.Past) (dde.State, error) {
	if len(y) != s.n {
		return nil, fmt.Errorf("%w: got %d components, system has %d", dde.ErrDimensionMismatch, len(y), s.n)
	}
	s.past = past
	copy(s.y, y)
	s.env["t"] = t

	for _, h := range s.helpers {
		v, err := s.machine.Run(h.program, s.env)
		if err != nil {
			return nil, fmt.Errorf("helper %q: %w", h.symbol, err)
		}
		s.env[h.symbol] = v
	}
	dy := make(dde.State, s.n)
	for i, eq := range s.equations {
		v, err := s.machine.Run(eq.program, s.env)
		if err != nil {
			return nil, fmt.Errorf("equation %d: %w", i, err)
		}
		dy[i] = v.(float64)
	}
	return dy, nil
}

func (s *System) eval(t float64, c *compiled) float64 {
	v, err := s.machine.Run(c.program, s.env)
	if err != nil {
		s.fail(t, c, err)
		return nan
	}
	f, ok := v.(float64)
	if !ok {
		s.fail(t, c, fmt.Errorf("result is %T, not float64", v))
		return nan
	}
	return f
}

func (s *System) fail(t float64, c *compiled, err error) {
	if s.err == nil {
		s.err = fmt.Errorf("%w: %s at t=%g: %w", dde.ErrInvalidState, c.symbol, t, err)
	}
}

func (s *System) GetParams() map[string]float64 {
	out := make(map[string]float64, len(s.params))
	for k, v := range s.params {
		out[k] = v
	}
	return out
}

func (s *System) SetParam(name string, v float64) error {
	if _, ok := s.params[name]; !ok {
		return fmt.Errorf("%w: %q", dde.ErrUnknownParam, name)
	}
	s.params[name] = v
	s.env[name] = v
	return nil
}

// ParamNames returns the parameter names sorted.
func (s *System) ParamNames() []string {
	names := make([]string, 0, len(s.params))
	for k := range s.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
