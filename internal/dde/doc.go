// Package dde provides the core primitives for integrating delay differential
// equations.
//
// The package defines the types shared by every other package:
//
//   - [State]: vector representing a system state or derivative
//   - [PastPoint]: one anchor of the solution history (time, state, derivative)
//   - [System]: interface for DDE right-hand sides dy/dt = f(t, y(t), y(t-τ), ...)
//   - [Past]: read access to the solution at earlier times
//
// # Example
//
//	sys := physics.NewMackeyGlass()
//	kern := integrators.NewBogackiShampine(sys)
//	kern.ConstantPast(dde.State{1.0}, 0, sys.MaxDelay())
//	drv, _ := sim.New(kern, control.DefaultParams())
//	y, err := drv.Integrate(100)
//
// # Errors
//
// Failures are reported through the sentinel errors in this package, wrapped by
// [ConfigError] and [StepTooSmallError] where additional context exists. Use
// errors.Is to classify them.
package dde
