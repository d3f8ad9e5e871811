// Package compute provides the dense linear-algebra backends used by the
// reservoir engine.
//
// A backend supplies the two kernels evaluated on every derivative call:
// matrix-vector multiply and elementwise tanh. Two backends are registered:
//
//   - blas: gonum's native BLAS through [mat.VecDense.MulVec]
//   - cpu: row-chunked goroutine kernels for large reservoirs
//
// The backend is chosen once when an engine is composed:
//
//	backend, err := compute.Get("cpu")
//	res, err := reservoir.New(params, reservoir.WithBackend(backend))
//
// Both backends produce identical results up to floating-point summation
// order.
package compute
