package physics

import "github.com/san-kum/reservoir/internal/dynamo"

// LorenzParams are σ, ρ and β of the Lorenz system.
type LorenzParams struct {
	Sigma, Rho, Beta float64
}

func DefaultLorenzParams() LorenzParams { return LorenzParams{10, 28, 2.667} }

type Lorenz struct{ sigma, rho, beta float64 }

func NewLorenz() *Lorenz { return NewLorenzWith(DefaultLorenzParams()) }

func NewLorenzWith(p LorenzParams) *Lorenz {
	return &Lorenz{p.Sigma, p.Rho, p.Beta}
}

func (l *Lorenz) StateDim() int   { return 3 }
func (l *Lorenz) ControlDim() int { return 0 }

// Derive calculates the Lorenz attractor derivatives.
func (l *Lorenz) Derive(s dynamo.State, _ dynamo.Control, _ float64) dynamo.State {
	return dynamo.State{l.sigma * (s[1] - s[0]), s[0]*(l.rho-s[2]) - s[1], s[0]*s[1] - l.beta*s[2]}
}
func (l *Lorenz) DefaultState() dynamo.State { return dynamo.State{1.0, 1.0, 1.0} }
func (l *Lorenz) GetParams() map[string]float64 {
	return map[string]float64{"sigma": l.sigma, "rho": l.rho, "beta": l.beta}
}

// NewLorenzGenerator returns a forward-Euler Lorenz trajectory source
// starting at x0.
func NewLorenzGenerator(x0 []float64, dt float64, p LorenzParams) (*Generator, error) {
	return NewGenerator(NewLorenzWith(p), x0, dt)
}
