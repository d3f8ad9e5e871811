package reservoir

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// equilibriumReadout returns W = xs·rsᵀ/(rs·rs), which maps rs onto xs.
func equilibriumReadout(p Params) *mat.Dense {
	rs := mat.VecDenseCopyOf(p.Rs.(*mat.VecDense))
	xs := mat.VecDenseCopyOf(p.Xs.(*mat.VecDense))
	w := mat.NewDense(xs.Len(), rs.Len(), nil)
	w.Outer(1/mat.Dot(rs, rs), xs, rs)
	return w
}

func TestClosedLoopFieldMatchesDrivenField(t *testing.T) {
	p := randomParams(30, 10, 3, 2)
	res, err := New(p)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(31))
	w := uniformDense(rng, 3, 10, 0.4)
	loop, err := res.CloseLoop(w)
	require.NoError(t, err)

	r := uniformVec(rng, 10, 0.5)
	var x mat.VecDense
	x.MulVec(w, r)

	want, err := res.Field(r, &x, p.Cs)
	require.NoError(t, err)
	got, err := loop.Field(r, p.Cs)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-12))

	var aeff mat.Dense
	aeff.Mul(p.B, w)
	aeff.Add(&aeff, p.A)
	assert.True(t, mat.EqualApprox(&aeff, loop.Recurrence(), 1e-15))
}

func TestClosedLoopHoldsEquilibrium(t *testing.T) {
	p := randomParams(32, 12, 3, 2)
	res, err := New(p)
	require.NoError(t, err)
	require.NoError(t, res.SetState(p.Rs))

	loop, err := res.CloseLoop(equilibriumReadout(p))
	require.NoError(t, err)

	dr, err := loop.Field(p.Rs, p.Cs)
	require.NoError(t, err)
	assert.InDelta(t, 0, dr.Norm(2), 1e-12)

	states, err := loop.Generate(context.Background(), NewConstantControl(p.Cs.(*mat.VecDense), 20))
	require.NoError(t, err)
	_, cols := states.Dims()
	assert.Equal(t, 20, cols)
	assert.True(t, mat.EqualApprox(p.Rs, states.ColView(cols-1), 1e-9))
	assert.True(t, mat.EqualApprox(p.Xs, loop.Output(), 1e-9))
}

func TestClosedLoopSharesState(t *testing.T) {
	p := randomParams(33, 6, 2, 1)
	res, err := New(p)
	require.NoError(t, err)

	loop, err := res.CloseLoop(mat.NewDense(2, 6, nil))
	require.NoError(t, err)

	window := constantWindow(mat.NewVecDense(1, []float64{0.3}))
	want, err := loop.Step(res.State(), window)
	require.NoError(t, err)
	assert.Equal(t, 0, res.StepsTaken())

	got, err := loop.Propagate(window)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
	assert.True(t, mat.Equal(got, res.State()))
	assert.Equal(t, 1, res.StepsTaken())
}

func TestClosedLoopZeroReadoutMatchesZeroInput(t *testing.T) {
	// With W = 0 the closed loop is the driven reservoir fed x = 0.
	p := randomParams(34, 6, 2, 1)
	res, err := New(p)
	require.NoError(t, err)
	loop, err := res.CloseLoop(mat.NewDense(2, 6, nil))
	require.NoError(t, err)

	r := uniformVec(rand.New(rand.NewSource(35)), 6, 0.4)
	c := mat.NewVecDense(1, []float64{0.2})

	want, err := res.Step(r, mat.NewDense(2, 4, nil), c)
	require.NoError(t, err)
	got, err := loop.Step(r, constantWindow(c))
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1e-15))
}

func TestCloseLoopRejectsBadReadout(t *testing.T) {
	p := randomParams(36, 6, 2, 1)
	res, err := New(p)
	require.NoError(t, err)

	_, err = res.CloseLoop(mat.NewDense(6, 2, nil))
	assert.ErrorIs(t, err, dynamo.ErrShape)
	_, err = res.CloseLoop(nil)
	assert.ErrorIs(t, err, dynamo.ErrShape)
}

func TestPredictWithSlidingControl(t *testing.T) {
	p := randomParams(37, 8, 2, 2)
	w := uniformDense(rand.New(rand.NewSource(38)), 2, 8, 0.3)
	signal := sineInput(2, 15, 0.02)

	res, err := New(p)
	require.NoError(t, err)
	states, err := res.Predict(context.Background(), NewSlidingControl(signal), w)
	require.NoError(t, err)

	rows, cols := states.Dims()
	assert.Equal(t, 8, rows)
	assert.Equal(t, 12, cols)
	assert.Equal(t, 11, res.StepsTaken())

	ref, err := New(p)
	require.NoError(t, err)
	loop, err := ref.CloseLoop(w)
	require.NoError(t, err)
	r := mat.NewVecDense(8, nil)
	for i := 1; i < cols; i++ {
		r, err = loop.Step(r, signal.Slice(0, 2, i-1, i+3))
		require.NoError(t, err)
	}
	assert.True(t, mat.EqualApprox(r, states.ColView(cols-1), 1e-14))
}

func TestGenerateSingleColumn(t *testing.T) {
	p := randomParams(39, 4, 1, 1)
	res, err := New(p)
	require.NoError(t, err)
	loop, err := res.CloseLoop(mat.NewDense(1, 4, nil))
	require.NoError(t, err)

	states, err := loop.Generate(context.Background(), NewConstantControl(p.Cs.(*mat.VecDense), 1))
	require.NoError(t, err)
	_, cols := states.Dims()
	assert.Equal(t, 1, cols)
	assert.Equal(t, 0, res.StepsTaken())

	_, err = loop.Generate(context.Background(), SampledControl{})
	assert.ErrorIs(t, err, dynamo.ErrPrecondition)

	_, err = loop.Generate(context.Background(), SampledControl{mat.NewDense(1, 4, nil), mat.NewDense(2, 4, nil), mat.NewDense(1, 4, nil)})
	assert.ErrorIs(t, err, dynamo.ErrShape)
}

func TestProject(t *testing.T) {
	w := mat.NewDense(1, 2, []float64{1, -1})
	states := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		0, 1, 1,
	})

	out, err := Project(w, states)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2}, mat.Row(nil, 0, out))

	_, err = Project(mat.NewDense(1, 3, nil), states)
	assert.ErrorIs(t, err, dynamo.ErrShape)
}
