package dde

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for integration operations.
var (
	// ErrConfiguration indicates an invalid combination of integration parameters.
	ErrConfiguration = errors.New("dde: invalid configuration")

	// ErrCyclicHelpers indicates helper expressions that reference each other in a cycle.
	ErrCyclicHelpers = errors.New("dde: helpers have cyclic dependencies")

	// ErrStepTooSmall indicates the effective step fell below min_step.
	ErrStepTooSmall = errors.New("dde: step size under min_step")

	// ErrDimensionMismatch indicates mismatched state/tolerance dimensions.
	ErrDimensionMismatch = errors.New("dde: dimension mismatch between state and system")

	// ErrNoHistory indicates integration was requested before enough past points exist.
	ErrNoHistory = errors.New("dde: at least two past points are required")

	// ErrInvalidState indicates a right-hand side that could not be evaluated,
	// leaving NaN in the trial state.
	ErrInvalidState = errors.New("dde: invalid state (right-hand side evaluation failed)")

	// ErrUnknownParam indicates a model parameter that does not exist.
	ErrUnknownParam = errors.New("dde: unknown parameter")
)

// ConfigError lists every rule a configuration violated.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration.Error(), strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// StepTooSmallError carries the step-size state at the moment the floor was hit.
type StepTooSmallError struct {
	MinStep   float64
	Dt        float64
	PWSFactor float64
	Time      float64
}

func (e *StepTooSmallError) Error() string {
	return fmt.Sprintf("%s (%g): dt=%g, pws_factor=%g at t=%g",
		ErrStepTooSmall.Error(), e.MinStep, e.Dt, e.PWSFactor, e.Time)
}

func (e *StepTooSmallError) Unwrap() error {
	return ErrStepTooSmall
}
