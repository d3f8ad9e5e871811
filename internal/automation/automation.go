// Package automation runs scripted sequences of reservoir experiments
// described in YAML.
package automation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/experiment"
	"github.com/san-kum/reservoir/internal/storage"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run in a scenario. Kind is train, predict or
// lyapunov; the last two need Readout.
type ScenarioStep struct {
	Name    string             `yaml:"name"`
	Kind    string             `yaml:"kind"`
	Preset  string             `yaml:"preset"`
	Config  string             `yaml:"config"`
	Params  map[string]float64 `yaml:"params"`
	Readout string             `yaml:"readout"`
	Steps   int                `yaml:"steps"`
	Save    bool               `yaml:"save"`
}

// StepResult is the outcome of one scenario step. RunID is set when the
// step was saved; Lambda only for lyapunov steps.
type StepResult struct {
	Step    string
	Kind    string
	RunID   string
	Metrics map[string]float64
	Lambda  float64
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %s has no steps", config.ErrInvalid, path)
	}
	return &scenario, nil
}

// Runner executes scenarios. Store may be nil when no step saves.
type Runner struct {
	Store  storage.Store
	Logger *logrus.Logger
}

// Run executes every step in order and stops at the first failure,
// returning the results of the steps that completed.
func (r *Runner) Run(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		r.Logger.WithFields(logrus.Fields{
			"scenario": scenario.Name,
			"step":     name,
			"kind":     step.Kind,
		}).Infof("running step %d/%d", i+1, len(scenario.Steps))

		res, err := r.runStep(ctx, step)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		res.Step = name
		results = append(results, res)
	}

	return results, nil
}

func (r *Runner) runStep(ctx context.Context, step ScenarioStep) (StepResult, error) {
	cfg, err := stepConfig(step)
	if err != nil {
		return StepResult{}, err
	}
	exp, err := experiment.New(cfg, experiment.WithLogger(r.Logger))
	if err != nil {
		return StepResult{}, err
	}

	kind := step.Kind
	if kind == "" {
		kind = "train"
	}

	var result *experiment.Result
	switch kind {
	case "train":
		result, err = exp.Train(ctx)
	case "predict", "lyapunov":
		if step.Readout == "" {
			return StepResult{}, fmt.Errorf("%w: %s step needs a readout", config.ErrInvalid, kind)
		}
		w, rerr := storage.ReadMatrixCSV(step.Readout)
		if rerr != nil {
			return StepResult{}, rerr
		}
		n := step.Steps
		if n == 0 {
			n = 5000
		}
		if kind == "lyapunov" {
			lambda, lerr := exp.Lyapunov(ctx, w, n)
			return StepResult{Kind: kind, Lambda: lambda}, lerr
		}
		result, err = exp.Predict(ctx, w, n)
	default:
		return StepResult{}, fmt.Errorf("%w: unknown step kind %q", config.ErrInvalid, kind)
	}
	if err != nil {
		return StepResult{}, err
	}

	out := StepResult{Kind: kind, Metrics: result.Metrics}
	if step.Save {
		if r.Store == nil {
			return StepResult{}, fmt.Errorf("%w: step saves but no store is configured", config.ErrInvalid)
		}
		if out.RunID, err = r.Store.Save(ctx, exp.Metadata(result), result.States); err != nil {
			return StepResult{}, err
		}
	}
	return out, nil
}

// stepConfig resolves preset, then config file, then params.
func stepConfig(step ScenarioStep) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if step.Preset != "" {
		src, name, ok := strings.Cut(step.Preset, "/")
		if !ok {
			return nil, fmt.Errorf("%w: preset must be source/name, got %q", config.ErrInvalid, step.Preset)
		}
		if cfg = config.GetPreset(src, name); cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", config.ErrInvalid, step.Preset)
		}
	}
	if step.Config != "" {
		loaded, err := config.Load(step.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for name, v := range step.Params {
		if err := cfg.Set(name, v); err != nil {
			return nil, err
		}
	}
	return cfg, cfg.Validate()
}
