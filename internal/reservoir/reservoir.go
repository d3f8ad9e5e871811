package reservoir

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/compute"
	"github.com/san-kum/reservoir/internal/dynamo"
	"github.com/san-kum/reservoir/internal/integrators"
)

// ProgressFunc is called once per completed integration step of a long run.
// It must not retain or modify engine state.
type ProgressFunc func(step, total int)

type Option func(*Reservoir)

// WithBackend selects the linear-algebra backend. The default is
// compute.AutoSelectBackend().
func WithBackend(b compute.Backend) Option {
	return func(res *Reservoir) { res.backend = b }
}

func WithProgress(fn ProgressFunc) Option {
	return func(res *Reservoir) { res.progress = fn }
}

func WithLogger(l *logrus.Logger) Option {
	return func(res *Reservoir) { res.logger = l }
}

// WithMetrics attaches metrics observed after every step of Train and
// Generate. Metrics are reset at the start of each run.
func WithMetrics(ms ...dynamo.Metric) Option {
	return func(res *Reservoir) { res.metrics = append(res.metrics, ms...) }
}

type Reservoir struct {
	n, m, k int

	a, b, c    *mat.Dense
	rs, xs, cs *mat.VecDense
	d          *mat.VecDense
	delT, gam  float64

	r     dynamo.State
	steps int

	backend  compute.Backend
	integ    dynamo.SampledIntegrator
	progress ProgressFunc
	logger   *logrus.Logger
	metrics  []dynamo.Metric

	// scratch reused by every derivative evaluation
	pre, drive *mat.VecDense
}

// New validates p, calibrates the bias and returns an engine whose state is
// the zero vector. The weights are copied; later changes to p do not affect
// the engine.
func New(p Params, opts ...Option) (*Reservoir, error) {
	n, m, k, err := p.Dims()
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	d, err := CalibrateBias(p.A, p.B, p.C, p.Rs, p.Xs, p.Cs)
	if err != nil {
		return nil, fmt.Errorf("calibrate bias: %w", err)
	}
	rs, _ := columnVector("rs", p.Rs, n)
	xs, _ := columnVector("xs", p.Xs, m)
	cs, _ := columnVector("cs", p.Cs, k)

	res := &Reservoir{
		n:     n,
		m:     m,
		k:     k,
		a:     mat.DenseCopyOf(p.A),
		b:     mat.DenseCopyOf(p.B),
		c:     mat.DenseCopyOf(p.C),
		rs:    rs,
		xs:    xs,
		cs:    cs,
		d:     d,
		delT:  p.DelT,
		gam:   p.Gam,
		r:     make(dynamo.State, n),
		integ: integrators.NewRK4(),
		pre:   mat.NewVecDense(n, nil),
		drive: mat.NewVecDense(n, nil),
	}
	for _, opt := range opts {
		opt(res)
	}
	if res.backend == nil {
		res.backend = compute.AutoSelectBackend()
	}
	if res.logger == nil {
		res.logger = logrus.StandardLogger()
	}

	res.logger.WithFields(logrus.Fields{
		"nodes":    n,
		"inputs":   m,
		"controls": k,
		"dt":       p.DelT,
		"gamma":    p.Gam,
		"backend":  res.backend.Name(),
	}).Debug("reservoir constructed")

	return res, nil
}

// Dims returns the state, input and control dimensions.
func (res *Reservoir) Dims() (n, m, k int) { return res.n, res.m, res.k }

func (res *Reservoir) Dt() float64              { return res.delT }
func (res *Reservoir) Gamma() float64           { return res.gam }
func (res *Reservoir) Backend() compute.Backend { return res.backend }
func (res *Reservoir) Bias() *mat.VecDense      { return mat.VecDenseCopyOf(res.d) }
func (res *Reservoir) State() *mat.VecDense     { return stateVec(res.r) }
func (res *Reservoir) StepsTaken() int          { return res.steps }

// Weights returns copies of the recurrent, input and control weights.
func (res *Reservoir) Weights() (a, b, c *mat.Dense) {
	return mat.DenseCopyOf(res.a), mat.DenseCopyOf(res.b), mat.DenseCopyOf(res.c)
}

// FixedPoint returns copies of the equilibrium targets used to calibrate the bias.
func (res *Reservoir) FixedPoint() (rs, xs, cs *mat.VecDense) {
	return mat.VecDenseCopyOf(res.rs), mat.VecDenseCopyOf(res.xs), mat.VecDenseCopyOf(res.cs)
}

// SetState replaces the reservoir state. The step counter is kept.
func (res *Reservoir) SetState(r mat.Matrix) error {
	rv, err := columnVector("r", r, res.n)
	if err != nil {
		return err
	}
	if err := checkFinite("r", rv); err != nil {
		return err
	}
	res.r = dynamo.State(mat.Col(nil, 0, rv))
	return nil
}

// SetProgress replaces the progress callback; nil disables reporting.
func (res *Reservoir) SetProgress(fn ProgressFunc) { res.progress = fn }

// Reset returns the state to zero and clears the step counter.
func (res *Reservoir) Reset() {
	res.r = make(dynamo.State, res.n)
	res.steps = 0
}

// Field evaluates the driven vector field gam*(-r + tanh(A·r + B·x + C·c + d)).
func (res *Reservoir) Field(r, x, c mat.Matrix) (*mat.VecDense, error) {
	rv, err := columnVector("r", r, res.n)
	if err != nil {
		return nil, err
	}
	xv, err := columnVector("x", x, res.m)
	if err != nil {
		return nil, err
	}
	ctrl, err := res.controlTerm(c)
	if err != nil {
		return nil, err
	}

	sys := drivenSystem{res: res, ctrl: ctrl}
	dr := sys.Derive(mat.Col(nil, 0, rv), mat.Col(nil, 0, xv), 0)
	return stateVec(dr), nil
}

// Step is the pure driven state transition: it advances r by one RK4 step
// against the M×4 input window x (column j feeds stage j) with the control c
// held across stages. The stored state is not touched.
func (res *Reservoir) Step(r, x, c mat.Matrix) (*mat.VecDense, error) {
	rv, err := columnVector("r", r, res.n)
	if err != nil {
		return nil, err
	}
	samples, err := windowSamples("x", x, res.m)
	if err != nil {
		return nil, err
	}
	ctrl, err := res.controlTerm(c)
	if err != nil {
		return nil, err
	}

	next := res.integ.StepSampled(drivenSystem{res: res, ctrl: ctrl}, dynamo.State(mat.Col(nil, 0, rv)), samples, 0, res.delT)
	if !next.IsValid() {
		return nil, &dynamo.StepError{Step: 1, Time: res.delT, State: next, Wrapped: dynamo.ErrNonFinite}
	}
	return stateVec(next), nil
}

// Propagate advances the stored state by one driven RK4 step and returns a
// copy of the new state. On error the stored state is unchanged.
func (res *Reservoir) Propagate(x, c mat.Matrix) (*mat.VecDense, error) {
	samples, err := windowSamples("x", x, res.m)
	if err != nil {
		return nil, err
	}
	ctrl, err := res.controlTerm(c)
	if err != nil {
		return nil, err
	}
	if err := res.advance(drivenSystem{res: res, ctrl: ctrl}, samples); err != nil {
		return nil, err
	}
	return res.State(), nil
}

// advance takes one RK4 step of sys from the stored state and commits it
// only if every component is finite.
func (res *Reservoir) advance(sys dynamo.System, samples [4]dynamo.Control) error {
	t := float64(res.steps) * res.delT
	next := res.integ.StepSampled(sys, res.r, samples, t, res.delT)
	if !next.IsValid() {
		return &dynamo.StepError{Step: res.steps + 1, Time: t + res.delT, State: next, Wrapped: dynamo.ErrNonFinite}
	}
	res.r = next
	res.steps++
	return nil
}

// derive evaluates gam*(-r + tanh(a·r + drive + d)); drive already holds the
// projected input and control terms.
func (res *Reservoir) derive(a *mat.Dense, r dynamo.State, drive *mat.VecDense) dynamo.State {
	res.backend.MulVec(res.pre, a, mat.NewVecDense(res.n, r))
	res.pre.AddVec(res.pre, drive)
	res.pre.AddVec(res.pre, res.d)
	res.backend.Tanh(res.pre, res.pre)

	dr := make(dynamo.State, res.n)
	for i := range dr {
		dr[i] = res.gam * (res.pre.AtVec(i) - r[i])
	}
	return dr
}

// controlTerm returns C·c for a single control vector.
func (res *Reservoir) controlTerm(c mat.Matrix) (*mat.VecDense, error) {
	cv, err := columnVector("c", c, res.k)
	if err != nil {
		return nil, err
	}
	term := mat.NewVecDense(res.n, nil)
	res.backend.MulVec(term, res.c, cv)
	return term, nil
}

func (res *Reservoir) observe(u dynamo.Control) {
	t := float64(res.steps) * res.delT
	for _, m := range res.metrics {
		m.Observe(res.r, u, t)
	}
}

func (res *Reservoir) resetMetrics() {
	for _, m := range res.metrics {
		m.Reset()
	}
}

func (res *Reservoir) report(step, total int) {
	if res.progress != nil {
		res.progress(step, total)
	}
}

// drivenSystem is the reservoir with its input channel fed by an external
// signal. The control term C·c is fixed for the lifetime of the value.
type drivenSystem struct {
	res  *Reservoir
	ctrl *mat.VecDense
}

func (s drivenSystem) Derive(r dynamo.State, x dynamo.Control, _ float64) dynamo.State {
	res := s.res
	res.backend.MulVec(res.drive, res.b, mat.NewVecDense(res.m, x))
	res.drive.AddVec(res.drive, s.ctrl)
	return res.derive(res.a, r, res.drive)
}

func (s drivenSystem) StateDim() int   { return s.res.n }
func (s drivenSystem) ControlDim() int { return s.res.m }

// windowSamples splits a rows×4 window into its four stage samples.
func windowSamples(name string, w mat.Matrix, rows int) ([4]dynamo.Control, error) {
	var samples [4]dynamo.Control
	if w == nil {
		return samples, fmt.Errorf("%w: %s window is required", dynamo.ErrShape, name)
	}
	r, c := w.Dims()
	if r != rows || c != 4 {
		return samples, dynamo.ShapeError(name+" window", r, c, rows, 4)
	}
	for j := range samples {
		samples[j] = mat.Col(nil, j, w)
	}
	return samples, nil
}

func stateVec(s dynamo.State) *mat.VecDense {
	return mat.NewVecDense(len(s), s.Clone())
}
