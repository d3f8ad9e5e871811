package experiment

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/compute"
	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/physics"
	"github.com/san-kum/reservoir/internal/storage"
)

// SourceFunc builds the M×T drive signal described by a configuration.
type SourceFunc func(cfg *config.Config) (*mat.Dense, error)

type Registry struct {
	sources map[string]SourceFunc
}

func NewRegistry() *Registry {
	r := &Registry{
		sources: make(map[string]SourceFunc),
	}

	r.sources["lorenz"] = func(cfg *config.Config) (*mat.Dense, error) {
		d := cfg.Drive
		gen, err := physics.NewLorenzGenerator(cfg.InitState(), d.Dt, physics.LorenzParams{Sigma: d.Sigma, Rho: d.Rho, Beta: d.Beta})
		if err != nil {
			return nil, err
		}
		return gen.Propagate(d.Steps)
	}
	r.sources["rossler"] = func(cfg *config.Config) (*mat.Dense, error) {
		gen, err := physics.NewRosslerGenerator(cfg.InitState(), cfg.Drive.Dt, physics.DefaultRosslerParams())
		if err != nil {
			return nil, err
		}
		return gen.Propagate(cfg.Drive.Steps)
	}
	r.sources["file"] = func(cfg *config.Config) (*mat.Dense, error) {
		x, err := storage.ReadMatrixCSV(cfg.Drive.File)
		if err != nil {
			return nil, err
		}
		if rows, cols := x.Dims(); rows != cfg.Reservoir.Inputs {
			return nil, fmt.Errorf("drive file %s is %dx%d, want %d rows", cfg.Drive.File, rows, cols, cfg.Reservoir.Inputs)
		}
		return x, nil
	}

	return r
}

// Register adds or replaces a drive source.
func (r *Registry) Register(name string, fn SourceFunc) {
	r.sources[name] = fn
}

func (r *Registry) GetSource(name string) (SourceFunc, error) {
	fn, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown drive source: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetBackend(name string) (compute.Backend, error) {
	return compute.Get(name)
}

func (r *Registry) ListSources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
