package experiment

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/dynamo"
	"github.com/san-kum/reservoir/internal/logging"
	"github.com/san-kum/reservoir/internal/storage"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Reservoir.Nodes = 20
	cfg.Reservoir.Dt = 0.005
	cfg.Reservoir.Gamma = 5
	cfg.Drive.Dt = 0.005
	cfg.Drive.Steps = 400
	cfg.Drive.Washout = 50
	return cfg
}

func TestTrainShape(t *testing.T) {
	var calls int
	exp, err := New(smallConfig(),
		WithLogger(logging.Discard()),
		WithProgress(func(step, total int) { calls++ }),
	)
	require.NoError(t, err)

	result, err := exp.Train(context.Background())
	require.NoError(t, err)

	// 401 drive samples, 50 washout steps: 351 samples left, 348 columns.
	rows, cols := result.States.Dims()
	assert.Equal(t, 20, rows)
	assert.Equal(t, 348, cols)
	assert.Equal(t, 347, calls)
	assert.Equal(t, "train", result.Kind)
	assert.Contains(t, result.Metrics, "stability")
	assert.Equal(t, 1.0, result.Metrics["stability"])
}

func TestWashoutContinuesTrajectory(t *testing.T) {
	cfg := smallConfig()
	washed, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	short, err := washed.Train(context.Background())
	require.NoError(t, err)

	full := smallConfig()
	full.Drive.Washout = 0
	whole, err := New(full, WithLogger(logging.Discard()))
	require.NoError(t, err)
	long, err := whole.Train(context.Background())
	require.NoError(t, err)

	n, cols := long.States.Dims()
	assert.True(t, mat.Equal(short.States, long.States.Slice(0, n, 50, cols)))
}

func TestTrainTooShort(t *testing.T) {
	cfg := smallConfig()
	cfg.Drive.Steps = 40
	cfg.Drive.Washout = 38
	exp, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, err = exp.Train(context.Background())
	assert.True(t, errors.Is(err, dynamo.ErrPrecondition))
}

func TestPredict(t *testing.T) {
	exp, err := New(smallConfig(), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, exp.Setup())

	w := mat.NewDense(3, 20, nil)
	result, err := exp.Predict(context.Background(), w, 25)
	require.NoError(t, err)

	_, cols := result.States.Dims()
	assert.Equal(t, 26, cols)
	rows, outCols := result.Outputs.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 26, outCols)
	assert.Contains(t, result.Metrics, "output_peak_hz")

	_, err = exp.Predict(context.Background(), mat.NewDense(2, 20, nil), 5)
	assert.ErrorIs(t, err, dynamo.ErrShape)
	_, err = exp.Predict(context.Background(), w, 0)
	assert.ErrorIs(t, err, dynamo.ErrPrecondition)
}

func TestLyapunovOpenReadout(t *testing.T) {
	exp, err := New(smallConfig(), WithLogger(logging.Discard()))
	require.NoError(t, err)

	// With W = 0 the loop is the undriven reservoir, which contracts for a
	// spectral radius below one.
	lambda, err := exp.Lyapunov(context.Background(), mat.NewDense(3, 20, nil), 2000)
	require.NoError(t, err)
	assert.Less(t, lambda, 0.0)

	_, err = exp.Lyapunov(context.Background(), mat.NewDense(3, 19, nil), 10)
	assert.ErrorIs(t, err, dynamo.ErrShape)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drive.csv")
	x := mat.NewDense(2, 30, nil)
	for j := 0; j < 30; j++ {
		x.Set(0, j, float64(j)/30)
		x.Set(1, j, 1-float64(j)/30)
	}
	require.NoError(t, storage.WriteMatrixCSV(path, x))

	cfg := smallConfig()
	cfg.Reservoir.Inputs = 2
	cfg.Drive.Source = "file"
	cfg.Drive.File = path
	cfg.Drive.Washout = 0

	exp, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	result, err := exp.Train(context.Background())
	require.NoError(t, err)

	_, cols := result.States.Dims()
	assert.Equal(t, 27, cols)

	cfg.Reservoir.Inputs = 3
	cfg.Drive.Source = "file"
	bad, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)
	_, err = bad.Train(context.Background())
	assert.Error(t, err)
}

func TestTrainEnsemble(t *testing.T) {
	cfg := smallConfig()
	cfg.Drive.Washout = 0
	exp, err := New(cfg, WithLogger(logging.Discard()))
	require.NoError(t, err)

	runs, err := exp.TrainEnsemble(context.Background(), 3, 0.01)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	single, err := exp.Train(context.Background())
	require.NoError(t, err)
	assert.True(t, mat.Equal(single.States, runs[0]))
	assert.False(t, mat.Equal(runs[0], runs[1]))
}

func TestMetadata(t *testing.T) {
	exp, err := New(smallConfig(), WithLogger(logging.Discard()))
	require.NoError(t, err)
	result, err := exp.Train(context.Background())
	require.NoError(t, err)

	meta := exp.Metadata(result)
	assert.Equal(t, "train", meta.Kind)
	assert.Equal(t, "lorenz", meta.Source)
	assert.Equal(t, 3, meta.Inputs)
	assert.Equal(t, result.Metrics, meta.Metrics)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"file", "lorenz", "rossler"}, r.ListSources())

	_, err := r.GetSource("sine")
	assert.Error(t, err)
	_, err = r.GetBackend("cuda")
	assert.Error(t, err)

	r.Register("zeros", func(cfg *config.Config) (*mat.Dense, error) {
		return mat.NewDense(cfg.Reservoir.Inputs, 10, nil), nil
	})
	fn, err := r.GetSource("zeros")
	require.NoError(t, err)
	x, err := fn(config.DefaultConfig())
	require.NoError(t, err)
	rows, _ := x.Dims()
	assert.Equal(t, 3, rows)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.Reservoir.Nodes = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
