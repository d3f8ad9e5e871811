// Package weights generates seeded random reservoirs.
package weights

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/reservoir"
)

// Options describes a random reservoir. Xs and Cs are the equilibrium input and
// control; when nil they default to zero.
type Options struct {
	Nodes, Inputs, Controls int

	SpectralRadius   float64
	Density          float64
	InputScale       float64
	ControlScale     float64
	EquilibriumScale float64

	Xs, Cs []float64

	Dt, Gamma float64
	Seed      int64
}

// Generate draws A with the given density and rescales it to the target
// spectral radius, draws B and C uniformly in ±scale and rs uniformly in
// ±EquilibriumScale. Equal Options always yield equal Params.
func Generate(s Options) (reservoir.Params, error) {
	if s.Nodes < 1 || s.Inputs < 1 || s.Controls < 1 {
		return reservoir.Params{}, fmt.Errorf("weights: dimensions must be positive, got %d/%d/%d", s.Nodes, s.Inputs, s.Controls)
	}
	if s.EquilibriumScale < 0 || s.EquilibriumScale >= 1 {
		return reservoir.Params{}, fmt.Errorf("weights: equilibrium scale %v outside [0, 1)", s.EquilibriumScale)
	}
	rng := rand.New(rand.NewSource(s.Seed))

	a := sparse(rng, s.Nodes, s.Density)
	if s.SpectralRadius > 0 {
		rho, err := SpectralRadius(a)
		if err != nil {
			return reservoir.Params{}, err
		}
		if rho > 0 {
			a.Scale(s.SpectralRadius/rho, a)
		}
	} else {
		a.Zero()
	}

	b := uniform(rng, s.Nodes, s.Inputs, s.InputScale)
	c := uniform(rng, s.Nodes, s.Controls, s.ControlScale)
	rs := mat.NewVecDense(s.Nodes, nil)
	for i := 0; i < s.Nodes; i++ {
		rs.SetVec(i, (rng.Float64()*2-1)*s.EquilibriumScale)
	}

	xs, err := vector("xs", s.Xs, s.Inputs)
	if err != nil {
		return reservoir.Params{}, err
	}
	cs, err := vector("cs", s.Cs, s.Controls)
	if err != nil {
		return reservoir.Params{}, err
	}

	return reservoir.Params{
		A: a, B: b, C: c,
		Rs: rs, Xs: xs, Cs: cs,
		DelT: s.Dt,
		Gam:  s.Gamma,
	}, nil
}

// SpectralRadius returns the largest eigenvalue modulus of a square matrix.
func SpectralRadius(a mat.Matrix) (float64, error) {
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return 0, errors.New("weights: eigendecomposition did not converge")
	}
	rho := 0.0
	for _, v := range eig.Values(nil) {
		rho = math.Max(rho, cmplx.Abs(v))
	}
	return rho, nil
}

func sparse(rng *rand.Rand, n int, density float64) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if rng.Float64() < density {
				a.Set(i, j, rng.NormFloat64())
			}
		}
	}
	return a
}

func uniform(rng *rand.Rand, r, c int, scale float64) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * scale
	}
	return mat.NewDense(r, c, data)
}

func vector(name string, v []float64, n int) (*mat.VecDense, error) {
	if v == nil {
		return mat.NewVecDense(n, nil), nil
	}
	if len(v) != n {
		return nil, fmt.Errorf("weights: %s has %d values, want %d", name, len(v), n)
	}
	return mat.NewVecDense(n, append([]float64(nil), v...)), nil
}
