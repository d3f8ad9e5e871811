package config

var Presets = map[string]map[string]*Config{
	"lorenz": {
		"small": preset(func(c *Config) {
			c.Reservoir.Nodes = 50
			c.Drive.Steps = 5000
			c.Drive.Washout = 200
		}),
		"standard": preset(func(c *Config) {}),
		"large": preset(func(c *Config) {
			c.Reservoir.Nodes = 1000
			c.Reservoir.Density = 0.02
			c.Backend = "cpu"
			c.Drive.Steps = 50000
		}),
		"edge": preset(func(c *Config) {
			c.Reservoir.SpectralRadius = 1.2
			c.Reservoir.Gamma = 25
		}),
	},
	"rossler": {
		"standard": preset(func(c *Config) {
			c.Drive.Source = "rossler"
			c.Drive.Dt = 0.01
			c.Reservoir.Dt = 0.01
			c.Reservoir.Gamma = 2
			c.Reservoir.InputScale = 0.1
		}),
		"slow": preset(func(c *Config) {
			c.Drive.Source = "rossler"
			c.Drive.Dt = 0.01
			c.Drive.Steps = 40000
			c.Reservoir.Dt = 0.01
			c.Reservoir.Gamma = 0.5
			c.Reservoir.InputScale = 0.1
		}),
	},
}

func preset(mutate func(*Config)) *Config {
	cfg := DefaultConfig()
	mutate(cfg)
	return cfg
}

// GetPreset returns a copy of the named preset, or nil if it does not exist.
func GetPreset(source, name string) *Config {
	sourcePresets, ok := Presets[source]
	if !ok {
		return nil
	}
	cfg, ok := sourcePresets[name]
	if !ok {
		return nil
	}
	cp := *cfg
	return &cp
}

func ListPresets(source string) []string {
	sourcePresets, ok := Presets[source]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(sourcePresets))
	for name := range sourcePresets {
		names = append(names, name)
	}
	return names
}
