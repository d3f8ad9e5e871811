package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var setters = map[string]func(*Config, float64){
	"spectral_radius":   func(c *Config, v float64) { c.Reservoir.SpectralRadius = v },
	"gamma":             func(c *Config, v float64) { c.Reservoir.Gamma = v },
	"dt":                func(c *Config, v float64) { c.Reservoir.Dt = v },
	"density":           func(c *Config, v float64) { c.Reservoir.Density = v },
	"input_scale":       func(c *Config, v float64) { c.Reservoir.InputScale = v },
	"control_scale":     func(c *Config, v float64) { c.Reservoir.ControlScale = v },
	"equilibrium_scale": func(c *Config, v float64) { c.Reservoir.EquilibriumScale = v },
	"nodes":             func(c *Config, v float64) { c.Reservoir.Nodes = int(v) },
	"seed":              func(c *Config, v float64) { c.Reservoir.Seed = int64(v) },
	"drive_steps":       func(c *Config, v float64) { c.Drive.Steps = int(v) },
	"drive_dt":          func(c *Config, v float64) { c.Drive.Dt = v },
	"washout":           func(c *Config, v float64) { c.Drive.Washout = int(v) },
}

// Settable lists the scalar fields accepted by Set.
func Settable() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set overrides one scalar field by name. The result is not validated.
func (c *Config) Set(name string, v float64) error {
	set, ok := setters[name]
	if !ok {
		return fmt.Errorf("%w: unknown field %q (settable: %s)", ErrInvalid, name, strings.Join(Settable(), ", "))
	}
	set(c, v)
	return nil
}

// ApplyOverrides parses name=value pairs and applies them in order.
func (c *Config) ApplyOverrides(pairs []string) error {
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("%w: override must be name=value, got %q", ErrInvalid, p)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		if err := c.Set(strings.TrimSpace(name), v); err != nil {
			return err
		}
	}
	return nil
}
