// Package metrics implements [dynamo.Metric] observers for reservoir runs.
//
// Attach them with reservoir.WithMetrics; the engine resets every metric at
// the start of Train or Generate and observes the state after each step.
package metrics

import "github.com/san-kum/reservoir/internal/dynamo"

// Standard returns the metrics reported by the CLI for a reservoir with
// equilibrium rs.
func Standard(rs []float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewStability(TanhBound),
		NewSaturation(),
		NewEquilibriumDrift(rs),
		NewDriveEffort(),
	}
}

// breakdown is implemented by metrics that report secondary values.
type breakdown interface {
	Breakdown() map[string]float64
}

// Snapshot collects the current value of each metric by name, plus any
// secondary values the metric reports.
func Snapshot(ms []dynamo.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
		if b, ok := m.(breakdown); ok {
			for k, v := range b.Breakdown() {
				out[k] = v
			}
		}
	}
	return out
}
