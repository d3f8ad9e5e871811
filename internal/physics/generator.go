package physics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
	"github.com/san-kum/reservoir/internal/integrators"
)

// Generator produces reference trajectories from an autonomous system. It is
// not safe for concurrent use.
type Generator struct {
	sys   dynamo.System
	integ dynamo.Integrator
	x     dynamo.State
	t     float64
	dt    float64
}

func NewGenerator(sys dynamo.System, x0 []float64, dt float64) (*Generator, error) {
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d components, want %d", dynamo.ErrShape, len(x0), sys.StateDim())
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt must be positive and finite, got %v", dynamo.ErrPrecondition, dt)
	}
	x := dynamo.State(x0).Clone()
	if !x.IsValid() {
		return nil, fmt.Errorf("%w: initial state %v", dynamo.ErrNonFinite, x0)
	}
	return &Generator{
		sys:   sys,
		integ: integrators.NewEuler(),
		x:     x,
		dt:    dt,
	}, nil
}

// Propagate takes n Euler steps and returns the dims×(n+1) trajectory whose
// column 0 is the state before the first step. The last column becomes the
// starting point of the next call. A negative n is rejected with
// ErrPrecondition and leaves the generator untouched.
func (g *Generator) Propagate(n int) (*mat.Dense, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: step count must not be negative, got %d", dynamo.ErrPrecondition, n)
	}
	dim := len(g.x)
	out := mat.NewDense(dim, n+1, nil)
	out.SetCol(0, g.x)
	for i := 1; i <= n; i++ {
		g.x = g.integ.Step(g.sys, g.x, nil, g.t, g.dt)
		g.t += g.dt
		out.SetCol(i, g.x)
	}
	return out, nil
}

// State returns a copy of the current state.
func (g *Generator) State() []float64 { return g.x.Clone() }

func (g *Generator) Time() float64 { return g.t }
