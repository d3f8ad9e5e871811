// Package reservoir implements a continuous-time tanh reservoir (echo-state
// network) integrated with fixed-step RK4.
//
// The reservoir obeys
//
//	dr/dt = gam * (-r + tanh(A·r + B·x + C·c + d))
//
// where A is the recurrent weight matrix, B maps the driving input x, C maps
// the control signal c and the bias d is calibrated once at construction so
// that a chosen state rs is an equilibrium for input xs and control cs.
//
// # Driven mode
//
// [Reservoir.Train] drives the reservoir with an input signal and records the
// state trajectory, the regression target for an external readout fit:
//
//	res, err := reservoir.New(params)
//	states, err := res.Train(ctx, x, c) // N×(T-3)
//
// Each RK4 step consumes a four-sample window of the input, one sample per
// stage, and holds the control fixed.
//
// # Closed-loop mode
//
// Given a learned readout W (M×N) the input channel is replaced by the
// reservoir's own output x = W·r, giving the effective recurrence A + B·W:
//
//	loop, err := res.CloseLoop(w)
//	generated, err := loop.Generate(ctx, reservoir.NewConstantControl(c, 1000))
//
// Closed-loop generation starts from the current state, normally the last
// state of a driven run.
//
// # Thread Safety
//
// A Reservoir owns its state and integrator scratch buffers and is NOT safe
// for concurrent use. Use [Ensemble] to advance independent trajectories in
// parallel; it gives every trajectory its own engine.
package reservoir
