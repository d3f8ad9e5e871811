package reservoir

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// Train drives the reservoir with the M×T input signal x and returns the
// N×(T-3) state trajectory. Column 0 is the state on entry; column i is the
// state after step i, which integrates across the window x[:, i-1:i+3] with
// one sample per RK4 stage. The width is always T-3, so a four-sample input
// yields only the entry state and no integration step.
//
// c is either a single control vector (K×1) held for the whole run or a K×T
// control signal, in which case step i holds column i-1.
//
// Train continues from the current state; call Reset first for a run from
// rest. On error the trajectory is discarded and the state is left at the
// last good step.
func (res *Reservoir) Train(ctx context.Context, x, c mat.Matrix) (*mat.Dense, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: input signal is required", dynamo.ErrShape)
	}
	rows, samples := x.Dims()
	if rows != res.m {
		return nil, dynamo.ShapeError("x", rows, samples, res.m, samples)
	}
	if samples < 4 {
		return nil, fmt.Errorf("%w: train needs at least 4 input samples, got %d", dynamo.ErrPrecondition, samples)
	}
	if err := checkFinite("x", x); err != nil {
		return nil, err
	}
	ctrlAt, err := res.controlSchedule(c, samples)
	if err != nil {
		return nil, err
	}

	cols := make([]dynamo.Control, samples)
	for j := range cols {
		cols[j] = mat.Col(nil, j, x)
	}

	nx := samples - 3
	total := nx - 1
	states := mat.NewDense(res.n, nx, nil)
	states.SetCol(0, res.r)

	log := res.logger.WithFields(logrus.Fields{
		"nodes":   res.n,
		"samples": samples,
		"steps":   total,
		"backend": res.backend.Name(),
	})
	log.Debug("train started")
	start := time.Now()

	res.resetMetrics()
	for i := 1; i < nx; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		window := [4]dynamo.Control{cols[i-1], cols[i], cols[i+1], cols[i+2]}
		sys := drivenSystem{res: res, ctrl: ctrlAt(i - 1)}
		if err := res.advance(sys, window); err != nil {
			log.WithError(err).Debug("train aborted")
			return nil, err
		}

		states.SetCol(i, res.r)
		res.observe(window[0])
		res.report(i, total)
	}

	log.WithField("elapsed", time.Since(start)).Debug("train finished")
	return states, nil
}

// controlSchedule resolves the control argument of Train into C·c per step.
func (res *Reservoir) controlSchedule(c mat.Matrix, samples int) (func(i int) *mat.VecDense, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: control is required", dynamo.ErrShape)
	}
	if err := checkFinite("c", c); err != nil {
		return nil, err
	}

	rows, cols := c.Dims()
	if rows == res.k && cols == samples && cols != 1 {
		buf := mat.NewVecDense(res.n, nil)
		col := make([]float64, res.k)
		return func(i int) *mat.VecDense {
			mat.Col(col, i, c)
			res.backend.MulVec(buf, res.c, mat.NewVecDense(res.k, col))
			return buf
		}, nil
	}

	term, err := res.controlTerm(c)
	if err != nil {
		return nil, fmt.Errorf("%w (or a %dx%d control signal)", err, res.k, samples)
	}
	return func(int) *mat.VecDense { return term }, nil
}
