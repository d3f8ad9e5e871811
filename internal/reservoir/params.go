package reservoir

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/dynamo"
)

// Params holds the weights, equilibrium targets and integration constants
// of a reservoir. Equilibrium vectors may be given as a single column or a
// single row; both are treated as column vectors.
type Params struct {
	A  mat.Matrix // N×N recurrent weights
	B  mat.Matrix // N×M input weights
	C  mat.Matrix // N×K control weights
	Rs mat.Matrix // equilibrium state, length N
	Xs mat.Matrix // equilibrium input, length M
	Cs mat.Matrix // equilibrium control, length K

	DelT float64
	Gam  float64
}

// Dims validates the weight shapes and returns the state, input and
// control dimensions.
func (p Params) Dims() (n, m, k int, err error) {
	if p.A == nil || p.B == nil || p.C == nil {
		return 0, 0, 0, fmt.Errorf("%w: weight matrices A, B and C are required", dynamo.ErrShape)
	}
	n, nc := p.A.Dims()
	if n != nc {
		return 0, 0, 0, dynamo.ShapeError("A", n, nc, n, n)
	}
	br, m := p.B.Dims()
	if br != n {
		return 0, 0, 0, dynamo.ShapeError("B", br, m, n, m)
	}
	cr, k := p.C.Dims()
	if cr != n {
		return 0, 0, 0, dynamo.ShapeError("C", cr, k, n, k)
	}
	return n, m, k, nil
}

func (p Params) validate() error {
	if !(p.DelT > 0) || math.IsInf(p.DelT, 0) {
		return fmt.Errorf("%w: delT must be positive and finite, got %v", dynamo.ErrPrecondition, p.DelT)
	}
	if math.IsNaN(p.Gam) || math.IsInf(p.Gam, 0) {
		return fmt.Errorf("%w: gam must be finite, got %v", dynamo.ErrNonFinite, p.Gam)
	}
	for name, m := range map[string]mat.Matrix{"A": p.A, "B": p.B, "C": p.C} {
		if err := checkFinite(name, m); err != nil {
			return err
		}
	}
	return nil
}

// CalibrateBias returns the bias d that makes rs an equilibrium of the
// reservoir for input xs and control cs:
//
//	0 = -rs + tanh(A·rs + B·xs + C·cs + d)  =>  d = atanh(rs) - A·rs - B·xs - C·cs
//
// Every component of rs must lie strictly inside (-1, 1).
func CalibrateBias(a, b, c, rs, xs, cs mat.Matrix) (*mat.VecDense, error) {
	n, m, k, err := Params{A: a, B: b, C: c}.Dims()
	if err != nil {
		return nil, err
	}
	rv, err := columnVector("rs", rs, n)
	if err != nil {
		return nil, err
	}
	xv, err := columnVector("xs", xs, m)
	if err != nil {
		return nil, err
	}
	cv, err := columnVector("cs", cs, k)
	if err != nil {
		return nil, err
	}

	d := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		ri := rv.AtVec(i)
		if !(math.Abs(ri) < 1) {
			return nil, fmt.Errorf("%w: rs[%d] = %v is outside (-1, 1), atanh diverges", dynamo.ErrNonFinite, i, ri)
		}
		d.SetVec(i, math.Atanh(ri))
	}

	var tmp mat.VecDense
	tmp.MulVec(a, rv)
	d.SubVec(d, &tmp)
	tmp.MulVec(b, xv)
	d.SubVec(d, &tmp)
	tmp.MulVec(c, cv)
	d.SubVec(d, &tmp)

	if err := checkFinite("d", d); err != nil {
		return nil, err
	}
	return d, nil
}

// columnVector copies a single-column or single-row matrix of length n into
// a new vector.
func columnVector(name string, v mat.Matrix, n int) (*mat.VecDense, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: %s is required", dynamo.ErrShape, name)
	}
	r, c := v.Dims()
	out := mat.NewVecDense(n, nil)
	switch {
	case c == 1 && r == n:
		for i := 0; i < n; i++ {
			out.SetVec(i, v.At(i, 0))
		}
	case r == 1 && c == n:
		for i := 0; i < n; i++ {
			out.SetVec(i, v.At(0, i))
		}
	default:
		return nil, dynamo.ShapeError(name, r, c, n, 1)
	}
	return out, nil
}

func checkFinite(name string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s[%d,%d] = %v", dynamo.ErrNonFinite, name, i, j, v)
			}
		}
	}
	return nil
}
