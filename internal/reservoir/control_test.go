package reservoir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestSlidingControlWindows(t *testing.T) {
	signal := mat.NewDense(1, 6, []float64{0, 1, 2, 3, 4, 5})
	seq := NewSlidingControl(signal)

	assert.Equal(t, 3, seq.Len())
	assert.Equal(t, []float64{2, 3, 4, 5}, mat.Row(nil, 0, seq.Window(2)))

	// The sequence owns a copy of the signal.
	signal.Set(0, 0, 9)
	assert.Equal(t, 0.0, seq.Window(0).At(0, 0))
}

func TestConstantControl(t *testing.T) {
	seq := NewConstantControl(mat.NewVecDense(2, []float64{1, -1}), 5)

	assert.Equal(t, 5, seq.Len())
	w := seq.Window(3)
	r, c := w.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, []float64{-1, -1, -1, -1}, mat.Row(nil, 1, w))
}
