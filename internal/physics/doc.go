// Package physics provides the chaotic reference systems used to drive a
// reservoir.
//
// Each model implements the [dynamo.System] interface:
//
//   - [Lorenz]: butterfly attractor
//   - [Rossler]: single-scroll attractor
//
// A [Generator] integrates a model with forward Euler and emits trajectories
// laid out as dims × time, the layout the reservoir's Train expects:
//
//	gen, err := physics.NewLorenzGenerator([]float64{1, 1, 1}, 0.01, physics.DefaultLorenzParams())
//	x, err := gen.Propagate(5000) // 3×5001
//
// The generator keeps its state between calls, so consecutive Propagate calls
// continue one trajectory.
package physics
