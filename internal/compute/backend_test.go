package compute

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return mat.NewDense(r, c, data)
}

func randomVec(rng *rand.Rand, n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return mat.NewVecDense(n, data)
}

func TestBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, rows := range []int{3, 64, 257} {
		a := randomDense(rng, rows, 31)
		x := randomVec(rng, 31)

		want := mat.NewVecDense(rows, nil)
		want.MulVec(a, x)

		for _, name := range Names() {
			b, err := Get(name)
			if err != nil {
				t.Fatalf("get %s: %v", name, err)
			}
			got := mat.NewVecDense(rows, nil)
			b.MulVec(got, a, x)
			if !mat.EqualApprox(got, want, 1e-12) {
				t.Errorf("%s: MulVec mismatch for %d rows", name, rows)
			}
		}
	}
}

func TestBackendMulVecOnView(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	big := randomDense(rng, 100, 100)
	view := big.Slice(10, 90, 5, 25)
	x := randomVec(rng, 20)

	want := mat.NewVecDense(80, nil)
	want.MulVec(view, x)

	got := mat.NewVecDense(80, nil)
	NewCPUBackend().MulVec(got, view, x)
	if !mat.EqualApprox(got, want, 1e-12) {
		t.Error("cpu MulVec on a strided view mismatch")
	}
}

func TestBackendTanhInPlace(t *testing.T) {
	for _, name := range Names() {
		b, _ := Get(name)
		n := 130
		x := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			x.SetVec(i, float64(i-n/2)/10)
		}
		b.Tanh(x, x)
		for i := 0; i < n; i++ {
			want := math.Tanh(float64(i-n/2) / 10)
			if math.Abs(x.AtVec(i)-want) > 1e-15 {
				t.Errorf("%s: tanh[%d] = %v, want %v", name, i, x.AtVec(i), want)
			}
		}
	}
}

func TestGetUnknownBackend(t *testing.T) {
	if _, err := Get("cuda"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestAutoSelectBackend(t *testing.T) {
	b := AutoSelectBackend()
	if b == nil || !b.Available() {
		t.Fatal("auto-selected backend must be available")
	}
	if b.Name() != "blas" {
		t.Errorf("expected blas, got %s", b.Name())
	}
}

func BenchmarkMulVec(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	a := randomDense(rng, 512, 512)
	x := randomVec(rng, 512)
	dst := mat.NewVecDense(512, nil)

	for _, name := range Names() {
		backend, _ := Get(name)
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				backend.MulVec(dst, a, x)
			}
		})
	}
}
