package compute

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type Backend interface {
	Name() string
	Available() bool
	// MulVec stores a·x in dst. dst must already have a's row count and
	// must not alias x.
	MulVec(dst *mat.VecDense, a mat.Matrix, x mat.Vector)
	// Tanh stores the elementwise tanh of x in dst. dst may alias x.
	Tanh(dst, x *mat.VecDense)
	Cleanup()
}

var factories = map[string]func() Backend{
	"blas": func() Backend { return NewBLASBackend() },
	"cpu":  func() Backend { return NewCPUBackend() },
}

// Get returns a fresh backend registered under name.
func Get(name string) (Backend, error) {
	fn, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s (available: %v)", name, Names())
	}
	b := fn()
	if !b.Available() {
		return nil, fmt.Errorf("backend %s not available", name)
	}
	return b, nil
}

func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func AutoSelectBackend() Backend {
	return NewBLASBackend()
}
