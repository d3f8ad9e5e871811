package reservoir

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// ClosedLoop runs a reservoir with its input channel fed back through a
// readout W, x = W·r. The loop shares state with the reservoir it was created
// from: stepping one advances the other.
type ClosedLoop struct {
	res  *Reservoir
	w    *mat.Dense
	aeff *mat.Dense // A + B·W
}

// CloseLoop validates the M×N readout w and precomputes the effective
// recurrence A + B·W.
func (res *Reservoir) CloseLoop(w mat.Matrix) (*ClosedLoop, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: readout is required", dynamo.ErrShape)
	}
	r, c := w.Dims()
	if r != res.m || c != res.n {
		return nil, dynamo.ShapeError("W", r, c, res.m, res.n)
	}
	if err := checkFinite("W", w); err != nil {
		return nil, err
	}

	aeff := mat.NewDense(res.n, res.n, nil)
	aeff.Mul(res.b, w)
	aeff.Add(aeff, res.a)

	return &ClosedLoop{res: res, w: mat.DenseCopyOf(w), aeff: aeff}, nil
}

// Predict closes the loop through w and generates a trajectory driven only
// by the control sequence.
func (res *Reservoir) Predict(ctx context.Context, seq ControlSequence, w mat.Matrix) (*mat.Dense, error) {
	loop, err := res.CloseLoop(w)
	if err != nil {
		return nil, err
	}
	return loop.Generate(ctx, seq)
}

// Recurrence returns a copy of A + B·W.
func (cl *ClosedLoop) Recurrence() *mat.Dense { return mat.DenseCopyOf(cl.aeff) }

// System exposes the loop as an ODE in r driven by the control alone. It
// shares scratch buffers with the reservoir and must not be integrated
// concurrently with it.
func (cl *ClosedLoop) System() dynamo.System { return closedSystem{cl} }

// Output returns the readout of the current state, W·r.
func (cl *ClosedLoop) Output() *mat.VecDense {
	out := mat.NewVecDense(cl.res.m, nil)
	out.MulVec(cl.w, cl.res.State())
	return out
}

// Field evaluates gam*(-r + tanh((A + B·W)·r + C·c + d)).
func (cl *ClosedLoop) Field(r, c mat.Matrix) (*mat.VecDense, error) {
	res := cl.res
	rv, err := columnVector("r", r, res.n)
	if err != nil {
		return nil, err
	}
	cv, err := columnVector("c", c, res.k)
	if err != nil {
		return nil, err
	}
	dr := closedSystem{cl}.Derive(mat.Col(nil, 0, rv), mat.Col(nil, 0, cv), 0)
	return stateVec(dr), nil
}

// Step is the pure closed-loop transition: one RK4 step of r against the
// K×4 control window c. The stored state is not touched.
func (cl *ClosedLoop) Step(r, c mat.Matrix) (*mat.VecDense, error) {
	res := cl.res
	rv, err := columnVector("r", r, res.n)
	if err != nil {
		return nil, err
	}
	samples, err := windowSamples("c", c, res.k)
	if err != nil {
		return nil, err
	}
	next := res.integ.StepSampled(closedSystem{cl}, dynamo.State(mat.Col(nil, 0, rv)), samples, 0, res.delT)
	if !next.IsValid() {
		return nil, &dynamo.StepError{Step: 1, Time: res.delT, State: next, Wrapped: dynamo.ErrNonFinite}
	}
	return stateVec(next), nil
}

// Propagate advances the shared state by one closed-loop RK4 step against
// the K×4 control window c and returns a copy of the new state.
func (cl *ClosedLoop) Propagate(c mat.Matrix) (*mat.VecDense, error) {
	samples, err := windowSamples("c", c, cl.res.k)
	if err != nil {
		return nil, err
	}
	if err := cl.res.advance(closedSystem{cl}, samples); err != nil {
		return nil, err
	}
	return cl.res.State(), nil
}

// Generate runs the closed loop for seq.Len() columns. Column 0 is the state
// on entry; column i is the state after stepping with seq.Window(i-1).
func (cl *ClosedLoop) Generate(ctx context.Context, seq ControlSequence) (*mat.Dense, error) {
	res := cl.res
	nc, err := checkSequence(seq)
	if err != nil {
		return nil, err
	}

	states := mat.NewDense(res.n, nc, nil)
	states.SetCol(0, res.r)
	total := nc - 1

	log := res.logger.WithFields(logrus.Fields{
		"nodes":   res.n,
		"steps":   total,
		"backend": res.backend.Name(),
	})
	log.Debug("closed-loop generation started")
	start := time.Now()

	res.resetMetrics()
	for i := 1; i < nc; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		samples, err := windowSamples("c", seq.Window(i-1), res.k)
		if err != nil {
			return nil, fmt.Errorf("control window %d: %w", i-1, err)
		}
		if err := res.advance(closedSystem{cl}, samples); err != nil {
			log.WithError(err).Debug("closed-loop generation aborted")
			return nil, err
		}

		states.SetCol(i, res.r)
		res.observe(samples[0])
		res.report(i, total)
	}

	log.WithField("elapsed", time.Since(start)).Debug("closed-loop generation finished")
	return states, nil
}

// closedSystem is the reservoir with x replaced by W·r; its control input is
// the external control sample.
type closedSystem struct {
	loop *ClosedLoop
}

func (s closedSystem) Derive(r dynamo.State, c dynamo.Control, _ float64) dynamo.State {
	res := s.loop.res
	res.backend.MulVec(res.drive, res.c, mat.NewVecDense(res.k, c))
	return res.derive(s.loop.aeff, r, res.drive)
}

func (s closedSystem) StateDim() int   { return s.loop.res.n }
func (s closedSystem) ControlDim() int { return s.loop.res.k }

// Project applies a readout to every column of a state trajectory, W·D.
func Project(w, states mat.Matrix) (*mat.Dense, error) {
	wr, wc := w.Dims()
	sr, sc := states.Dims()
	if wc != sr {
		return nil, dynamo.ShapeError("states", sr, sc, wc, sc)
	}
	out := mat.NewDense(wr, sc, nil)
	out.Mul(w, states)
	return out, nil
}
