// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types shared by the
// integrators, the reservoir engine and the reference signal generators:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [SampledIntegrator]: integrator that accepts one input sample per stage
//   - [Metric]: per-step trajectory observer
//
// # Errors
//
// Failures are reported with the sentinels [ErrShape], [ErrNonFinite] and
// [ErrPrecondition]. Errors raised inside a stepping loop are wrapped in a
// [StepError] carrying the step index and simulated time:
//
//	if errors.Is(err, dynamo.ErrNonFinite) {
//	    // shrink dt or rescale the weights
//	}
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT thread-safe. Each trajectory
// advanced concurrently needs its own integrator instance.
package dynamo
