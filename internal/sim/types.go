package sim

import (
	"github.com/san-kum/ddesim/internal/control"
	"github.com/san-kum/ddesim/internal/dde"
)

// Kernel is the step kernel a Driver advances. Trials are computed by
// AttemptStep and only become history through CommitStep.
type Kernel interface {
	control.Stepper
	Dim() int
	CurrentTime() float64
	History() []dde.PastPoint
	ErrorEstimate() dde.State
	CommitStep()
	Interpolate(t float64, a, b dde.PastPoint) dde.State
}

type Phase int

const (
	Stepping Phase = iota
	Correcting
	Accepted
	Failed
	Done
)

func (p Phase) String() string {
	switch p {
	case Stepping:
		return "stepping"
	case Correcting:
		return "correcting"
	case Accepted:
		return "accepted"
	case Failed:
		return "failed"
	case Done:
		return "done"
	}
	return "unknown"
}

type EventKind int

const (
	EventAccept EventKind = iota
	EventReject
	EventThrottle
	EventConverged
	EventFailure
)

func (k EventKind) String() string {
	return [...]string{"accept", "reject", "throttle", "converged", "failure"}[k]
}

// Event describes one decision of the driver. Time is the start of the step
// the decision was about; Dt and PWSFactor are the values after it.
type Event struct {
	Kind       EventKind
	Time       float64
	Step       float64
	Dt         float64
	PWSFactor  float64
	ErrorNorm  float64
	Iterations int
	State      dde.State
}

type Observer interface {
	OnEvent(ev Event)
}

// Stats accumulates over the lifetime of a Driver.
type Stats struct {
	Accepted     int
	Rejected     int
	Throttled    int
	Corrections  int
	Iterations   int
	Evaluations  int
	LastStep     float64
	NextStep     float64
	MinPWSFactor float64
}

type evaluationCounter interface {
	Evaluations() int
}

type evaluationFailer interface {
	Err() error
}
