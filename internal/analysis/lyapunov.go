package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// cancelCheckInterval is how many steps pass between context checks.
const cancelCheckInterval = 256

// LargestLyapunov estimates the largest Lyapunov exponent of sys under a
// constant input u. A reference and a perturbed trajectory start d0 apart;
// after each step the separation is logged and pulled back to d0 along its
// current direction. The estimate is the mean log growth per unit time.
func LargestLyapunov(
	ctx context.Context,
	sys dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	u dynamo.Control,
	dt float64,
	steps int,
	d0 float64,
) (float64, error) {
	if len(x0) != sys.StateDim() {
		return 0, fmt.Errorf("%w: x0 has %d components, system has %d", dynamo.ErrShape, len(x0), sys.StateDim())
	}
	if len(u) != sys.ControlDim() {
		return 0, fmt.Errorf("%w: input has %d components, system has %d", dynamo.ErrShape, len(u), sys.ControlDim())
	}
	if steps < 1 || !(dt > 0) || !(d0 > 0) {
		return 0, fmt.Errorf("%w: need steps >= 1, dt > 0 and d0 > 0", dynamo.ErrPrecondition)
	}
	if !x0.IsValid() {
		return 0, fmt.Errorf("%w: x0", dynamo.ErrNonFinite)
	}

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += d0

	sumLog := 0.0
	t := 0.0
	for i := 0; i < steps; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}

		x = integ.Step(sys, x, u, t, dt)
		xp = integ.Step(sys, xp, u, t, dt)
		t += dt

		sep := xp.Sub(x).Norm()
		if math.IsNaN(sep) || math.IsInf(sep, 0) || !x.IsValid() {
			return 0, &dynamo.StepError{Step: i + 1, Time: t, State: x, Wrapped: dynamo.ErrNonFinite}
		}
		if sep == 0 {
			// merged to machine precision
			xp = x.Clone()
			xp[0] += d0
			continue
		}
		sumLog += math.Log(sep / d0)

		scale := d0 / sep
		for j := range xp {
			xp[j] = x[j] + (xp[j]-x[j])*scale
		}
	}

	return sumLog / t, nil
}
