package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Drive.Source != "lorenz" {
		t.Errorf("expected source lorenz, got %s", cfg.Drive.Source)
	}
	if cfg.Reservoir.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no nodes", func(c *Config) { c.Reservoir.Nodes = 0 }},
		{"no controls", func(c *Config) { c.Reservoir.Controls = 0 }},
		{"zero dt", func(c *Config) { c.Reservoir.Dt = 0 }},
		{"density above one", func(c *Config) { c.Reservoir.Density = 1.5 }},
		{"saturated equilibrium", func(c *Config) { c.Reservoir.EquilibriumScale = 1 }},
		{"lorenz with two inputs", func(c *Config) { c.Reservoir.Inputs = 2 }},
		{"short x0", func(c *Config) { c.Drive.X0 = []float64{1, 2} }},
		{"unknown source", func(c *Config) { c.Drive.Source = "sine" }},
		{"file without path", func(c *Config) { c.Drive.Source = "file" }},
		{"wrong control count", func(c *Config) { c.Control.Values = []float64{1, 2} }},
		{"wrong xs count", func(c *Config) { c.Reservoir.Xs = []float64{1} }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	cfg := DefaultConfig()
	cfg.Reservoir.Nodes = 64
	cfg.Control.Values = []float64{0.25}
	cfg.Drive.X0 = []float64{1, 2, 3}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Reservoir.Nodes != 64 {
		t.Errorf("nodes = %d, want 64", loaded.Reservoir.Nodes)
	}
	if got := loaded.ControlValues(); len(got) != 1 || got[0] != 0.25 {
		t.Errorf("control values = %v, want [0.25]", got)
	}
	if got := loaded.InitState(); got[2] != 3 {
		t.Errorf("x0 = %v, want [1 2 3]", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("reservoir:\n  nodes: 10\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reservoir.Nodes != 10 {
		t.Errorf("nodes = %d, want 10", cfg.Reservoir.Nodes)
	}
	if cfg.Reservoir.Gamma != DefaultGamma {
		t.Errorf("gamma = %v, want default %v", cfg.Reservoir.Gamma, DefaultGamma)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want text", cfg.Log.Format)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("reservoir:\n  density: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestControlValuesDefaultToZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reservoir.Controls = 3
	got := cfg.ControlValues()
	if len(got) != 3 {
		t.Fatalf("got %d values, want 3", len(got))
	}
	for _, v := range got {
		if v != 0 {
			t.Errorf("expected zero control, got %v", v)
		}
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("lorenz", "small")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Reservoir.Nodes != 50 {
		t.Errorf("expected 50 nodes, got %d", cfg.Reservoir.Nodes)
	}

	cfg.Reservoir.Nodes = 7
	if GetPreset("lorenz", "small").Reservoir.Nodes != 50 {
		t.Error("GetPreset must return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("lorenz", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "small")
	if cfg != nil {
		t.Error("expected nil for nonexistent source")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("lorenz")
	if len(presets) == 0 {
		t.Error("expected presets for lorenz")
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent source")
	}
}

func TestPresetsValidate(t *testing.T) {
	for source, group := range Presets {
		for name, cfg := range group {
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", source, name, err)
			}
		}
	}
}

func TestSetAndOverrides(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ApplyOverrides([]string{"gamma=3.5", " nodes = 40", "washout=0"}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if cfg.Reservoir.Gamma != 3.5 || cfg.Reservoir.Nodes != 40 || cfg.Drive.Washout != 0 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Reservoir, cfg.Drive)
	}

	for _, bad := range [][]string{{"gamma"}, {"gamma=fast"}, {"bogus=1"}} {
		if err := cfg.ApplyOverrides(bad); !errors.Is(err, ErrInvalid) {
			t.Errorf("ApplyOverrides(%v) = %v, want ErrInvalid", bad, err)
		}
	}

	names := Settable()
	if len(names) == 0 || names[0] != "control_scale" {
		t.Errorf("Settable() = %v, want sorted names", names)
	}
}
