package control

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/ddesim/internal/dde"
	"gopkg.in/yaml.v3"
)

// ErrorOrder is the order q of the embedded error estimate.
const ErrorOrder = 3.0

const (
	DefaultRTol              = 1e-5
	DefaultFirstStep         = 1.0
	DefaultMinStep           = 1e-10
	DefaultMaxStep           = 10.0
	DefaultDecreaseThreshold = 1.1
	DefaultIncreaseThreshold = 0.5
	DefaultSafetyFactor      = 0.9
	DefaultMaxFactor         = 5.0
	DefaultMinFactor         = 0.2
	DefaultPWSRTol           = 1e-5
	DefaultPWSMaxIterations  = 10
	DefaultPWSAdaptionFactor = 0.5
)

// Tolerance is either a single value applied to every component or one value
// per component.
type Tolerance []float64

func Scalar(v float64) Tolerance { return Tolerance{v} }

func (t Tolerance) At(i int) float64 {
	if len(t) == 1 {
		return t[0]
	}
	return t[i]
}

func (t Tolerance) IsZero() bool {
	for _, v := range t {
		if v != 0 {
			return false
		}
	}
	return true
}

func (t *Tolerance) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*t = Tolerance{v}
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*t = vs
	default:
		return fmt.Errorf("line %d: tolerance must be a number or a list of numbers", node.Line)
	}
	return nil
}

func (t Tolerance) MarshalYAML() (interface{}, error) {
	if len(t) == 1 {
		return t[0], nil
	}
	return []float64(t), nil
}

// Params holds every tunable parameter of one integration.
type Params struct {
	ATol Tolerance `yaml:"atol" validate:"min=1,dive,gte=0"`
	RTol Tolerance `yaml:"rtol" validate:"min=1,dive,gte=0"`

	FirstStep float64 `yaml:"first_step" validate:"gt=0"`
	MinStep   float64 `yaml:"min_step" validate:"gte=0"`
	MaxStep   float64 `yaml:"max_step" validate:"gt=0"`

	DecreaseThreshold float64 `yaml:"decrease_threshold" validate:"gte=1"`
	IncreaseThreshold float64 `yaml:"increase_threshold" validate:"lte=1"`
	SafetyFactor      float64 `yaml:"safety_factor" validate:"gt=0,lte=1"`
	MaxFactor         float64 `yaml:"max_factor" validate:"gte=1"`
	MinFactor         float64 `yaml:"min_factor" validate:"gt=0,lte=1"`

	PWSATol           Tolerance `yaml:"pws_atol" validate:"min=1,dive,gte=0"`
	PWSRTol           Tolerance `yaml:"pws_rtol" validate:"min=1,dive,gte=0"`
	PWSMaxIterations  int       `yaml:"pws_max_iterations" validate:"gt=0"`
	PWSAdaptionFactor float64   `yaml:"pws_adaption_factor" validate:"gt=0,lt=1"`

	// RaiseException makes a step-size floor violation an error instead of a
	// warning with an all-NaN result.
	RaiseException bool `yaml:"raise_exception"`
}

func DefaultParams() Params {
	return Params{
		ATol:              Scalar(0),
		RTol:              Scalar(DefaultRTol),
		FirstStep:         DefaultFirstStep,
		MinStep:           DefaultMinStep,
		MaxStep:           DefaultMaxStep,
		DecreaseThreshold: DefaultDecreaseThreshold,
		IncreaseThreshold: DefaultIncreaseThreshold,
		SafetyFactor:      DefaultSafetyFactor,
		MaxFactor:         DefaultMaxFactor,
		MinFactor:         DefaultMinFactor,
		PWSATol:           Scalar(0),
		PWSRTol:           Scalar(DefaultPWSRTol),
		PWSMaxIterations:  DefaultPWSMaxIterations,
		PWSAdaptionFactor: DefaultPWSAdaptionFactor,
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks signs, bounds and orderings. Every violated rule is reported
// in a single *dde.ConfigError.
func (p *Params) Validate() error {
	var problems []string

	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", dde.ErrConfiguration, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if !(p.MinStep <= p.FirstStep && p.FirstStep <= p.MaxStep) {
		problems = append(problems, fmt.Sprintf(
			"bogus step parameters: need min_step <= first_step <= max_step, got %g, %g, %g",
			p.MinStep, p.FirstStep, p.MaxStep))
	}

	if len(problems) > 0 {
		return &dde.ConfigError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must not be empty", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s, got %v", fe.Field(), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// CheckDim verifies every tolerance vector is scalar or matches the system dimension.
func (p *Params) CheckDim(n int) error {
	tols := []struct {
		name string
		tol  Tolerance
	}{
		{"atol", p.ATol},
		{"rtol", p.RTol},
		{"pws_atol", p.PWSATol},
		{"pws_rtol", p.PWSRTol},
	}
	for _, t := range tols {
		if len(t.tol) != 1 && len(t.tol) != n {
			return fmt.Errorf("%w: %s has %d components, system has %d",
				dde.ErrDimensionMismatch, t.name, len(t.tol), n)
		}
	}
	return nil
}

// Warnings returns non-fatal remarks about the configuration.
func (p *Params) Warnings() []string {
	var warnings []string
	if p.ATol.IsZero() && p.RTol.IsZero() {
		warnings = append(warnings, "atol and rtol are both 0; no nonzero error estimate will ever be accepted")
	}
	return warnings
}

// CheckFloor fails once the effective step drops below MinStep.
func (p *Params) CheckFloor(st *State) error {
	if st.Effective() < p.MinStep {
		return &dde.StepTooSmallError{MinStep: p.MinStep, Dt: st.Dt, PWSFactor: st.PWSFactor}
	}
	return nil
}
