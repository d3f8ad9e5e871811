package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultNodes            = 200
	DefaultDt               = 0.001
	DefaultGamma            = 10.0
	DefaultSpectralRadius   = 0.9
	DefaultDensity          = 0.1
	DefaultInputScale       = 0.05
	DefaultControlScale     = 0.1
	DefaultEquilibriumScale = 0.3
	DefaultDriveSteps       = 20000
	DefaultDriveDt          = 0.001
	DefaultWashout          = 1000
	DefaultStorageDir       = "runs"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Reservoir ReservoirConfig `yaml:"reservoir"`
	Backend   string          `yaml:"backend"`
	Drive     DriveConfig     `yaml:"drive"`
	Control   ControlConfig   `yaml:"control"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

type ReservoirConfig struct {
	Nodes            int     `yaml:"nodes"`
	Inputs           int     `yaml:"inputs"`
	Controls         int     `yaml:"controls"`
	Dt               float64 `yaml:"dt"`
	Gamma            float64 `yaml:"gamma"`
	SpectralRadius   float64 `yaml:"spectral_radius"`
	Density          float64 `yaml:"density"`
	InputScale       float64 `yaml:"input_scale"`
	ControlScale     float64 `yaml:"control_scale"`
	EquilibriumScale float64 `yaml:"equilibrium_scale"`
	// Xs is the equilibrium input. Empty means the time mean of the drive.
	Xs   []float64 `yaml:"xs,omitempty"`
	Seed int64     `yaml:"seed"`
}

type DriveConfig struct {
	Source  string    `yaml:"source"`
	Steps   int       `yaml:"steps"`
	Dt      float64   `yaml:"dt"`
	X0      []float64 `yaml:"x0,omitempty"`
	Sigma   float64   `yaml:"sigma"`
	Rho     float64   `yaml:"rho"`
	Beta    float64   `yaml:"beta"`
	File    string    `yaml:"file,omitempty"`
	Washout int       `yaml:"washout"`
}

type ControlConfig struct {
	Values []float64 `yaml:"values,omitempty"`
}

type StorageConfig struct {
	Dir    string `yaml:"dir"`
	Driver string `yaml:"driver"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Reservoir: ReservoirConfig{
			Nodes:            DefaultNodes,
			Inputs:           3,
			Controls:         1,
			Dt:               DefaultDt,
			Gamma:            DefaultGamma,
			SpectralRadius:   DefaultSpectralRadius,
			Density:          DefaultDensity,
			InputScale:       DefaultInputScale,
			ControlScale:     DefaultControlScale,
			EquilibriumScale: DefaultEquilibriumScale,
			Seed:             1,
		},
		Backend: "blas",
		Drive: DriveConfig{
			Source:  "lorenz",
			Steps:   DefaultDriveSteps,
			Dt:      DefaultDriveDt,
			Sigma:   10,
			Rho:     28,
			Beta:    2.667,
			Washout: DefaultWashout,
		},
		Storage: StorageConfig{
			Dir:    DefaultStorageDir,
			Driver: "file",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first field that cannot produce a runnable experiment.
func (c *Config) Validate() error {
	r := c.Reservoir
	switch {
	case r.Nodes < 1:
		return invalid("reservoir.nodes", r.Nodes, "must be at least 1")
	case r.Inputs < 1:
		return invalid("reservoir.inputs", r.Inputs, "must be at least 1")
	case r.Controls < 1:
		return invalid("reservoir.controls", r.Controls, "must be at least 1")
	case !positive(r.Dt):
		return invalid("reservoir.dt", r.Dt, "must be positive")
	case !positive(r.Gamma):
		return invalid("reservoir.gamma", r.Gamma, "must be positive")
	case r.SpectralRadius < 0:
		return invalid("reservoir.spectral_radius", r.SpectralRadius, "must not be negative")
	case !(r.Density > 0 && r.Density <= 1):
		return invalid("reservoir.density", r.Density, "must be in (0, 1]")
	case !(r.EquilibriumScale >= 0 && r.EquilibriumScale < 1):
		return invalid("reservoir.equilibrium_scale", r.EquilibriumScale, "must be in [0, 1)")
	case len(r.Xs) != 0 && len(r.Xs) != r.Inputs:
		return invalid("reservoir.xs", r.Xs, fmt.Sprintf("must have %d values", r.Inputs))
	}

	d := c.Drive
	switch d.Source {
	case "lorenz", "rossler":
		if r.Inputs != 3 {
			return invalid("reservoir.inputs", r.Inputs, "must be 3 for a "+d.Source+" drive")
		}
		if len(d.X0) != 0 && len(d.X0) != 3 {
			return invalid("drive.x0", d.X0, "must have 3 values")
		}
		if !positive(d.Dt) {
			return invalid("drive.dt", d.Dt, "must be positive")
		}
		if d.Steps < 3 {
			return invalid("drive.steps", d.Steps, "must be at least 3")
		}
	case "file":
		if d.File == "" {
			return invalid("drive.file", d.File, "is required for a file drive")
		}
	default:
		return invalid("drive.source", d.Source, "must be lorenz, rossler or file")
	}
	if d.Washout < 0 {
		return invalid("drive.washout", d.Washout, "must not be negative")
	}

	if n := len(c.Control.Values); n != 0 && n != r.Controls {
		return invalid("control.values", c.Control.Values, fmt.Sprintf("must have %d values", r.Controls))
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		return invalid("storage.driver", c.Storage.Driver, "must be file or sqlite")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", c.Log.Format, "must be text or json")
	}
	return nil
}

// ControlValues returns the control held during a run, zeros if unset.
func (c *Config) ControlValues() []float64 {
	if len(c.Control.Values) == c.Reservoir.Controls {
		return append([]float64(nil), c.Control.Values...)
	}
	return make([]float64, c.Reservoir.Controls)
}

// InitState returns the drive's starting point.
func (c *Config) InitState() []float64 {
	if len(c.Drive.X0) == 3 {
		return append([]float64(nil), c.Drive.X0...)
	}
	return []float64{1, 1, 1}
}

func invalid(field string, v any, why string) error {
	return fmt.Errorf("%w: %s = %v %s", ErrInvalid, field, v, why)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
