package dde

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// NaNState returns the sentinel result of an unsuccessful integration.
func NaNState(n int) State {
	s := make(State, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func (s State) MaxAbs() float64 {
	m := 0.0
	for _, v := range s {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// PastPoint is one anchor of the solution history. Points are immutable once
// they have been appended to a history.
type PastPoint struct {
	Time  float64
	State State
	Diff  State
}

// Past gives a right-hand side access to the solution at earlier times.
type Past interface {
	// At returns component i of the solution at time t.
	At(t float64, i int) float64
}

// System is a delay differential equation dy/dt = f(t, y, past).
// Derive writes the derivative into dy, which has length Dim().
type System interface {
	Dim() int
	Derive(t float64, y State, past Past, dy State)
}

// Delayed is implemented by systems that know their largest delay.
// Fallible is a System whose Derive can fail. Derive then writes NaN and the
// first failure is kept for Err.
type Fallible interface {
	Err() error
}

type Delayed interface {
	MaxDelay() float64
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
