package physics

import "github.com/san-kum/reservoir/internal/dynamo"

// RosslerParams are a, b and c of the Rössler system.
type RosslerParams struct {
	A, B, C float64
}

func DefaultRosslerParams() RosslerParams { return RosslerParams{0.2, 0.2, 5.7} }

type Rossler struct{ a, b, c float64 }

func NewRossler() *Rossler { return NewRosslerWith(DefaultRosslerParams()) }

func NewRosslerWith(p RosslerParams) *Rossler {
	return &Rossler{p.A, p.B, p.C}
}

func (r *Rossler) StateDim() int   { return 3 }
func (r *Rossler) ControlDim() int { return 0 }

// Derive calculates the Rossler attractor derivatives.
func (r *Rossler) Derive(s dynamo.State, _ dynamo.Control, _ float64) dynamo.State {
	return dynamo.State{-s[1] - s[2], s[0] + r.a*s[1], r.b + s[2]*(s[0]-r.c)}
}
func (r *Rossler) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (r *Rossler) GetParams() map[string]float64 {
	return map[string]float64{"a": r.a, "b": r.b, "c": r.c}
}

func NewRosslerGenerator(x0 []float64, dt float64, p RosslerParams) (*Generator, error) {
	return NewGenerator(NewRosslerWith(p), x0, dt)
}
