package compute

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

// Rows below this count are processed serially; goroutine fan-out costs
// more than it saves on small reservoirs.
const parallelRows = 64

type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) MulVec(dst *mat.VecDense, a mat.Matrix, x mat.Vector) {
	rows, cols := a.Dims()
	raw := rawMatrix(a)

	vec := make([]float64, cols)
	for j := range vec {
		vec[j] = x.AtVec(j)
	}

	out := make([]float64, rows)
	c.parallelFor(rows, func(start, end int) {
		for i := start; i < end; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+cols]
			sum := 0.0
			for j, v := range row {
				sum += v * vec[j]
			}
			out[i] = sum
		}
	})

	for i, v := range out {
		dst.SetVec(i, v)
	}
}

func (c *CPUBackend) Tanh(dst, x *mat.VecDense) {
	n := x.Len()
	c.parallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			dst.SetVec(i, math.Tanh(x.AtVec(i)))
		}
	})
}

// parallelFor splits [0, n) into contiguous chunks, one per worker.
func (c *CPUBackend) parallelFor(n int, fn func(start, end int)) {
	if n < parallelRows || c.workers <= 1 {
		fn(0, n)
		return
	}

	workers := c.workers
	if n/parallelRows < workers {
		workers = n / parallelRows
	}
	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

func rawMatrix(a mat.Matrix) blas64.General {
	if rm, ok := a.(mat.RawMatrixer); ok {
		return rm.RawMatrix()
	}
	return mat.DenseCopyOf(a).RawMatrix()
}
