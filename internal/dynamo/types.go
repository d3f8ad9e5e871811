package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// State is a point in a system's state space. The reservoir's r and the
// generators' x are both carried as States between integrator steps.
type State []float64

func (s State) Clone() State {
	return append(State(nil), s...)
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	return floats.Norm(s, 2)
}

// Sub returns s - other. The states must have equal length.
func (s State) Sub(other State) State {
	out := s.Clone()
	floats.Sub(out, other)
	return out
}

func (s State) Scale(factor float64) State {
	out := s.Clone()
	floats.Scale(factor, out)
	return out
}

// Control is the input sample fed to a System for one derivative evaluation.
type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// SampledIntegrator is a four-stage integrator whose stages each read their
// own input sample: u[0] at t, u[1] and u[2] at t+dt/2, u[3] at t+dt.
type SampledIntegrator interface {
	Integrator
	StepSampled(dyn System, x State, u [4]Control, t float64, dt float64) State
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}
