package reservoir

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Ensemble trains one independent engine per input signal in parallel. All
// engines share the same parameters and options, so any ProgressFunc or
// metric passed in opts must be safe for concurrent use.
type Ensemble struct {
	params Params
	opts   []Option
}

func NewEnsemble(p Params, opts ...Option) *Ensemble {
	return &Ensemble{params: p, opts: opts}
}

// Train runs every input from the zero state and returns the trajectories
// in input order. The first failure cancels the remaining runs.
func (e *Ensemble) Train(ctx context.Context, inputs []mat.Matrix, c mat.Matrix) ([]*mat.Dense, error) {
	results := make([]*mat.Dense, len(inputs))
	errs := make([]error, len(inputs))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			res, err := New(e.params, e.opts...)
			if err != nil {
				errs[idx] = err
				cancel()
				return
			}

			results[idx], errs[idx] = res.Train(ctx, inputs[idx], c)
			if errs[idx] != nil {
				cancel()
			}
		}(i)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}

	return results, nil
}
