// Package control provides the step-size control of the DDE integrator.
//
// Three pieces share one [State] (the nominal step Dt and the short-delay
// throttle PWSFactor):
//
//   - [Params]: validated tolerances, step bounds and gains
//   - [StepController]: error-feedback accept/reject and step resizing
//   - [Corrector]: fixed-point resolution of trials whose delay is shorter
//     than the step, throttling PWSFactor when it converges too slowly
//
// # Usage
//
//	p := control.DefaultParams()
//	p.RTol = control.Scalar(1e-6)
//	if err := p.Validate(); err != nil {
//	    return err
//	}
//	st := control.NewState(&p)
//	ctl := control.NewStepController(&p)
//	decision, err := ctl.Adjust(&st, ctl.NormalizedError(errEst, y))
//
// The effective step handed to a kernel is always PWSFactor*Dt; whenever it
// shrinks below MinStep the operation fails with a *dde.StepTooSmallError.
package control
