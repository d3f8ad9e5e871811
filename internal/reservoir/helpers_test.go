package reservoir

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

func uniformDense(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

func uniformVec(rng *rand.Rand, n int, scale float64) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewVecDense(n, data)
}

func randomParams(seed int64, n, m, k int) Params {
	rng := rand.New(rand.NewSource(seed))
	return Params{
		A:    uniformDense(rng, n, n, 0.5/math.Sqrt(float64(n))),
		B:    uniformDense(rng, n, m, 0.5),
		C:    uniformDense(rng, n, k, 0.5),
		Rs:   uniformVec(rng, n, 0.5),
		Xs:   uniformVec(rng, m, 1),
		Cs:   uniformVec(rng, k, 1),
		DelT: 0.01,
		Gam:  5,
	}
}

// sineInput is an M×T signal of phase-shifted sines.
func sineInput(m, t int, dt float64) *mat.Dense {
	x := mat.NewDense(m, t, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < t; j++ {
			x.Set(i, j, math.Sin(float64(j)*dt*3+float64(i)))
		}
	}
	return x
}

// twoNodeParams is a decoupled 2-node reservoir with equilibrium 0.5.
func twoNodeParams() Params {
	return Params{
		A:    mat.NewDense(2, 2, nil),
		B:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		C:    mat.NewDense(2, 1, nil),
		Rs:   mat.NewVecDense(2, []float64{0.5, 0.5}),
		Xs:   mat.NewVecDense(2, []float64{0.5, 0.5}),
		Cs:   mat.NewVecDense(1, []float64{0}),
		DelT: 0.01,
		Gam:  1.0,
	}
}

func constantWindow(v *mat.VecDense) *mat.Dense {
	w := mat.NewDense(v.Len(), 4, nil)
	for i := 0; i < v.Len(); i++ {
		for j := 0; j < 4; j++ {
			w.Set(i, j, v.AtVec(i))
		}
	}
	return w
}

type countingMetric struct {
	observed int
	resets   int
}

func (c *countingMetric) Name() string { return "count" }
func (c *countingMetric) Observe(x dynamo.State, u dynamo.Control, t float64) {
	c.observed++
}
func (c *countingMetric) Value() float64 { return float64(c.observed) }
func (c *countingMetric) Reset() {
	c.observed = 0
	c.resets++
}
