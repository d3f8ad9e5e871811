package reservoir

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// ControlSequence supplies the K×4 control window for each closed-loop step.
// Window(i) feeds the step that produces column i+1 of a generated
// trajectory, so a sequence of length L yields L columns.
type ControlSequence interface {
	Len() int
	Window(i int) mat.Matrix
}

// SampledControl is an explicit list of K×4 windows, one per time step.
type SampledControl []mat.Matrix

func (s SampledControl) Len() int                { return len(s) }
func (s SampledControl) Window(i int) mat.Matrix { return s[i] }

// SlidingControl windows a K×(L+3) control signal the same way Train windows
// its input: step i reads columns i..i+3.
type SlidingControl struct {
	signal *mat.Dense
}

func NewSlidingControl(signal mat.Matrix) *SlidingControl {
	return &SlidingControl{signal: mat.DenseCopyOf(signal)}
}

func (s *SlidingControl) Len() int {
	_, c := s.signal.Dims()
	return c - 3
}

func (s *SlidingControl) Window(i int) mat.Matrix {
	r, _ := s.signal.Dims()
	return s.signal.Slice(0, r, i, i+4)
}

// ConstantControl holds one control value for a fixed number of steps.
type ConstantControl struct {
	window *mat.Dense
	steps  int
}

func NewConstantControl(c mat.Vector, steps int) *ConstantControl {
	k := c.Len()
	w := mat.NewDense(k, 4, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < 4; j++ {
			w.Set(i, j, c.AtVec(i))
		}
	}
	return &ConstantControl{window: w, steps: steps}
}

func (s *ConstantControl) Len() int              { return s.steps }
func (s *ConstantControl) Window(int) mat.Matrix { return s.window }

func checkSequence(seq ControlSequence) (int, error) {
	if seq == nil {
		return 0, fmt.Errorf("%w: control sequence is required", dynamo.ErrPrecondition)
	}
	l := seq.Len()
	if l < 1 {
		return 0, fmt.Errorf("%w: control sequence is empty", dynamo.ErrPrecondition)
	}
	return l, nil
}
