package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/analysis"
	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/dynamo"
	"github.com/san-kum/reservoir/internal/integrators"
	"github.com/san-kum/reservoir/internal/metrics"
	"github.com/san-kum/reservoir/internal/reservoir"
	"github.com/san-kum/reservoir/internal/storage"
	"github.com/san-kum/reservoir/internal/weights"
)

const lyapunovSeparation = 1e-8

// Result is the outcome of one run.
type Result struct {
	Kind    string
	States  *mat.Dense // N×L reservoir trajectory
	Drive   *mat.Dense // input signal of a driven run, after washout
	Outputs *mat.Dense // W·States of a closed-loop run
	Metrics map[string]float64
	Elapsed time.Duration
}

type Option func(*Experiment)

func WithLogger(l *logrus.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

// WithProgress forwards engine progress. Washout steps are not reported.
func WithProgress(fn reservoir.ProgressFunc) Option {
	return func(e *Experiment) { e.progress = fn }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// Experiment wires a configuration to a reservoir: it draws the weights,
// builds the drive signal and runs the engine.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	logger   *logrus.Logger
	progress reservoir.ProgressFunc

	drive   *mat.Dense
	params  reservoir.Params
	res     *reservoir.Reservoir
	metrics []dynamo.Metric
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	return e, nil
}

// Setup builds the drive signal and the engine. It is called by Train and
// Predict when needed.
func (e *Experiment) Setup() error {
	if e.res != nil {
		return nil
	}
	source, err := e.registry.GetSource(e.cfg.Drive.Source)
	if err != nil {
		return err
	}
	backend, err := e.registry.GetBackend(e.cfg.Backend)
	if err != nil {
		return err
	}

	drive, err := source(e.cfg)
	if err != nil {
		return fmt.Errorf("build %s drive: %w", e.cfg.Drive.Source, err)
	}

	rc := e.cfg.Reservoir
	xs := rc.Xs
	if len(xs) == 0 {
		xs = rowMeans(drive)
	}
	params, err := weights.Generate(weights.Options{
		Nodes:            rc.Nodes,
		Inputs:           rc.Inputs,
		Controls:         rc.Controls,
		SpectralRadius:   rc.SpectralRadius,
		Density:          rc.Density,
		InputScale:       rc.InputScale,
		ControlScale:     rc.ControlScale,
		EquilibriumScale: rc.EquilibriumScale,
		Xs:               xs,
		Cs:               e.cfg.ControlValues(),
		Dt:               rc.Dt,
		Gamma:            rc.Gamma,
		Seed:             rc.Seed,
	})
	if err != nil {
		return err
	}

	rs := mat.Col(nil, 0, params.Rs)
	e.metrics = metrics.Standard(rs)
	res, err := reservoir.New(params,
		reservoir.WithBackend(backend),
		reservoir.WithLogger(e.logger),
		reservoir.WithMetrics(e.metrics...),
	)
	if err != nil {
		return err
	}

	e.drive, e.params, e.res = drive, params, res
	return nil
}

func (e *Experiment) Engine() *reservoir.Reservoir { return e.res }
func (e *Experiment) Params() reservoir.Params     { return e.params }

// Train drives the reservoir from rest with the configured signal. The first
// drive.washout steps are integrated but not recorded; column 0 of the
// result is the state after the washout.
func (e *Experiment) Train(ctx context.Context) (*Result, error) {
	if err := e.Setup(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.res.Reset()

	x, err := e.washout(ctx)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{
		"source":  e.cfg.Drive.Source,
		"nodes":   e.cfg.Reservoir.Nodes,
		"backend": e.res.Backend().Name(),
	})
	log.Info("training reservoir")

	states, err := e.withProgress().Train(ctx, x, e.params.Cs)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	result := &Result{
		Kind:    "train",
		States:  states,
		Drive:   x,
		Metrics: metrics.Snapshot(e.metrics),
		Elapsed: time.Since(start),
	}
	log.WithField("elapsed", result.Elapsed).Info("training finished")
	return result, nil
}

// Predict synchronises the reservoir with the drive (as Train does), then
// closes the loop through w and generates steps further states with the
// configured control held.
func (e *Experiment) Predict(ctx context.Context, w mat.Matrix, steps int) (*Result, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: predict needs at least 1 step, got %d", dynamo.ErrPrecondition, steps)
	}
	if err := e.Setup(); err != nil {
		return nil, err
	}
	start := time.Now()
	e.res.Reset()

	x, err := e.washout(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.res.Train(ctx, x, e.params.Cs); err != nil {
		return nil, fmt.Errorf("synchronise: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"steps":   steps,
		"backend": e.res.Backend().Name(),
	}).Info("closed-loop prediction")

	cs := mat.VecDenseCopyOf(e.params.Cs.(*mat.VecDense))
	states, err := e.withProgress().Predict(ctx, reservoir.NewConstantControl(cs, steps+1), w)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	outputs, err := reservoir.Project(w, states)
	if err != nil {
		return nil, err
	}

	snap := metrics.Snapshot(e.metrics)
	if f, err := analysis.DominantFrequency(mat.Row(nil, 0, outputs), e.cfg.Reservoir.Dt); err == nil {
		snap["output_peak_hz"] = f
	}

	return &Result{
		Kind:    "predict",
		States:  states,
		Outputs: outputs,
		Metrics: snap,
		Elapsed: time.Since(start),
	}, nil
}

// Lyapunov synchronises the reservoir with the drive, closes the loop
// through w and estimates the largest Lyapunov exponent of the autonomous
// system over steps steps, with the configured control held.
func (e *Experiment) Lyapunov(ctx context.Context, w mat.Matrix, steps int) (float64, error) {
	if err := e.Setup(); err != nil {
		return 0, err
	}
	e.res.Reset()

	x, err := e.washout(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := e.res.Train(ctx, x, e.params.Cs); err != nil {
		return 0, fmt.Errorf("synchronise: %w", err)
	}
	loop, err := e.res.CloseLoop(w)
	if err != nil {
		return 0, err
	}

	r0 := dynamo.State(mat.Col(nil, 0, e.res.State()))
	u := dynamo.Control(mat.Col(nil, 0, e.params.Cs))
	e.logger.WithField("steps", steps).Info("estimating closed-loop Lyapunov exponent")

	lambda, err := analysis.LargestLyapunov(ctx, loop.System(), integrators.NewRK4(), r0, u, e.res.Dt(), steps, lyapunovSeparation)
	if err != nil {
		return 0, fmt.Errorf("lyapunov: %w", err)
	}
	e.logger.WithField("lambda", lambda).Info("lyapunov estimate")
	return lambda, nil
}

// TrainEnsemble trains n independent copies of the reservoir in parallel,
// copy i driven from the configured initial state shifted by i*spread in
// every component. Washout is not applied.
func (e *Experiment) TrainEnsemble(ctx context.Context, n int, spread float64) ([]*mat.Dense, error) {
	if err := e.Setup(); err != nil {
		return nil, err
	}
	source, err := e.registry.GetSource(e.cfg.Drive.Source)
	if err != nil {
		return nil, err
	}

	inputs := make([]mat.Matrix, n)
	for i := range inputs {
		cfg := *e.cfg
		x0 := e.cfg.InitState()
		for j := range x0 {
			x0[j] += float64(i) * spread
		}
		cfg.Drive.X0 = x0
		if inputs[i], err = source(&cfg); err != nil {
			return nil, err
		}
	}

	e.logger.WithField("members", n).Info("training ensemble")
	ens := reservoir.NewEnsemble(e.params,
		reservoir.WithBackend(e.res.Backend()),
		reservoir.WithLogger(e.logger),
	)
	return ens.Train(ctx, inputs, e.params.Cs)
}

// Metadata describes a result for storage.
func (e *Experiment) Metadata(r *Result) storage.RunMetadata {
	rc := e.cfg.Reservoir
	return storage.RunMetadata{
		Kind:     r.Kind,
		Source:   e.cfg.Drive.Source,
		Backend:  e.cfg.Backend,
		Seed:     rc.Seed,
		Inputs:   rc.Inputs,
		Controls: rc.Controls,
		Dt:       rc.Dt,
		Gamma:    rc.Gamma,
		Metrics:  r.Metrics,
	}
}

// washout integrates the first drive.washout steps and returns the rest of
// the drive, whose first window continues where the washout stopped.
func (e *Experiment) washout(ctx context.Context) (*mat.Dense, error) {
	w := e.cfg.Drive.Washout
	m, t := e.drive.Dims()
	if t-w < 4 {
		return nil, fmt.Errorf("%w: drive has %d samples, washout %d leaves fewer than 4", dynamo.ErrPrecondition, t, w)
	}
	e.res.SetProgress(nil)
	if w == 0 {
		return e.drive, nil
	}

	e.logger.WithField("steps", w).Debug("washout")
	if _, err := e.res.Train(ctx, e.drive.Slice(0, m, 0, w+4), e.params.Cs); err != nil {
		return nil, fmt.Errorf("washout: %w", err)
	}
	return e.drive.Slice(0, m, w, t).(*mat.Dense), nil
}

func (e *Experiment) withProgress() *reservoir.Reservoir {
	e.res.SetProgress(e.progress)
	return e.res
}

func rowMeans(x mat.Matrix) []float64 {
	r, c := x.Dims()
	means := make([]float64, r)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += x.At(i, j)
		}
		means[i] = sum / float64(c)
	}
	return means
}
