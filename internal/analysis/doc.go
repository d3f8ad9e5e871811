// Package analysis characterises trajectories produced by the reservoir and
// the reference generators.
//
//   - [LargestLyapunov]: largest Lyapunov exponent by two-trajectory separation
//     with renormalisation after every step
//   - [PowerSpectrum] and [DominantFrequency]: one-sided spectrum of a sampled
//     signal
//
// A closed-loop reservoir that has learned a chaotic attractor should show a
// positive exponent close to the one of the system it was trained on:
//
//	loop, _ := res.CloseLoop(w)
//	lambda, err := analysis.LargestLyapunov(ctx, loop.System(), integrators.NewRK4(), r0, cs, dt, 20000, 1e-8)
package analysis
