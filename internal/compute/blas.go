package compute

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BLASBackend delegates to gonum, which dispatches to its native BLAS
// implementation (or a cgo BLAS when one is registered).
type BLASBackend struct{}

func NewBLASBackend() *BLASBackend { return &BLASBackend{} }

func (b *BLASBackend) Name() string    { return "blas" }
func (b *BLASBackend) Available() bool { return true }
func (b *BLASBackend) Cleanup()        {}

func (b *BLASBackend) MulVec(dst *mat.VecDense, a mat.Matrix, x mat.Vector) {
	dst.MulVec(a, x)
}

func (b *BLASBackend) Tanh(dst, x *mat.VecDense) {
	for i := 0; i < x.Len(); i++ {
		dst.SetVec(i, math.Tanh(x.AtVec(i)))
	}
}
