package metrics

import (
	"math"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// EquilibriumDrift tracks the largest Euclidean distance between the state
// and the calibrated equilibrium rs.
type EquilibriumDrift struct {
	name     string
	rs       dynamo.State
	maxDrift float64
	final    float64
}

func NewEquilibriumDrift(rs []float64) *EquilibriumDrift {
	return &EquilibriumDrift{
		name: "equilibrium_drift",
		rs:   dynamo.State(rs).Clone(),
	}
}

func (e *EquilibriumDrift) Name() string { return e.name }

func (e *EquilibriumDrift) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.final = x.Sub(e.rs).Norm()
	e.maxDrift = math.Max(e.maxDrift, e.final)
}

func (e *EquilibriumDrift) Value() float64 {
	return e.maxDrift
}

// Final is the distance at the last observed step.
func (e *EquilibriumDrift) Final() float64 { return e.final }

func (e *EquilibriumDrift) Reset() {
	e.maxDrift = 0
	e.final = 0
}
