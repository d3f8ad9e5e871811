package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reservoir/internal/automation"
	"github.com/san-kum/reservoir/internal/compute"
	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/experiment"
	"github.com/san-kum/reservoir/internal/export"
	"github.com/san-kum/reservoir/internal/physics"
	"github.com/san-kum/reservoir/internal/reservoir"
	"github.com/san-kum/reservoir/internal/storage"
	"github.com/san-kum/reservoir/internal/tui"
)

// loadConfig resolves preset, then config file, then flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		src, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be source/name, got %q", preset)
		}
		cfg = config.GetPreset(src, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(src))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("nodes") {
		cfg.Reservoir.Nodes = nodes
	}
	if flags.Changed("dt") {
		cfg.Reservoir.Dt = dt
	}
	if flags.Changed("gamma") {
		cfg.Reservoir.Gamma = gamma
	}
	if flags.Changed("spectral-radius") {
		cfg.Reservoir.SpectralRadius = spectralRadius
	}
	if flags.Changed("seed") {
		cfg.Reservoir.Seed = seed
	}
	if flags.Changed("backend") {
		cfg.Backend = backendName
	}
	if flags.Changed("control") {
		cfg.Control.Values = controlValues
		cfg.Reservoir.Controls = len(controlValues)
	}
	if flags.Changed("source") {
		cfg.Drive.Source = source
	}
	if flags.Changed("drive-file") {
		cfg.Drive.File = driveFile
	}
	if flags.Changed("steps") {
		cfg.Drive.Steps = steps
	}
	if flags.Changed("drive-dt") {
		cfg.Drive.Dt = driveDt
	}
	if flags.Changed("washout") {
		cfg.Drive.Washout = washout
	}
	if flags.Changed("x0") {
		cfg.Drive.X0 = x0
	}
	if flags.Changed("data") {
		cfg.Storage.Dir = dataDir
	}
	if flags.Changed("driver") {
		cfg.Storage.Driver = driver
	}
	if err := cfg.ApplyOverrides(overrides); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(ctx context.Context, driverName, dir string) (storage.Store, error) {
	st, err := storage.NewStore(driverName, dir)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func generateLorenz(cmd *cobra.Command, args []string) error {
	params := physics.LorenzParams{Sigma: genSigma, Rho: genRho, Beta: genBeta}
	gen, err := physics.NewLorenzGenerator(genX0, genDt, params)
	if err != nil {
		return err
	}
	x, err := gen.Propagate(genSteps)
	if err != nil {
		return err
	}

	if err := storage.WriteMatrixCSV(genOut, x); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"path":  genOut,
		"sigma": params.Sigma,
		"rho":   params.Rho,
		"beta":  params.Beta,
	}).Info("lorenz drive written")

	if len(phaseAxes) == 2 {
		path := strings.TrimSuffix(genOut, filepath.Ext(genOut)) + "_phase.png"
		opts := export.DefaultPlotOptions()
		opts.Title = "Lorenz attractor"
		if err := export.PlotPhase(path, x, phaseAxes[0], phaseAxes[1], opts); err != nil {
			return err
		}
		fmt.Printf("phase plot: %s\n", path)
	}

	fmt.Printf("wrote %s samples of 3 components to %s\n", humanize.Comma(int64(genSteps+1)), genOut)
	fmt.Println(asciigraph.Plot(downsample(mat.Row(nil, 0, x), 200),
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("x(t)"),
	))
	return nil
}

// runEngine runs job behind a progress bar, or with log lines when the TUI
// is disabled. It returns once job has returned.
func runEngine(ctx context.Context, title string, job func(context.Context, reservoir.ProgressFunc) error) error {
	if noTUI {
		return job(ctx, func(step, total int) {
			if total >= 10 && step%(total/10) == 0 {
				logger.WithField("step", step).Infof("%s %d%%", title, 100*step/total)
			}
		})
	}
	return tui.RunWithProgress(ctx, title, job)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, cfg.Storage.Driver, cfg.Storage.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	var result *experiment.Result
	var exp *experiment.Experiment
	err = runEngine(ctx, "training reservoir", func(ctx context.Context, progress reservoir.ProgressFunc) error {
		e, err := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithProgress(progress))
		if err != nil {
			return err
		}
		res, err := e.Train(ctx)
		if err != nil {
			return err
		}
		exp, result = e, res
		return nil
	})
	if err != nil {
		return err
	}

	runID, err := st.Save(ctx, exp.Metadata(result), result.States)
	if err != nil {
		return err
	}

	n, cols := result.States.Dims()
	fmt.Printf("run %s: %d nodes x %s states in %s\n", runID, n, humanize.Comma(int64(cols)), result.Elapsed.Round(1e6))
	printMetrics(result.Metrics)

	if ensemble > 0 {
		runs, err := exp.TrainEnsemble(ctx, ensemble, spread)
		if err != nil {
			return err
		}
		final := mat.Col(nil, cols-1, result.States)
		fmt.Println("ensemble (distance of final state from the recorded run):")
		for i, r := range runs {
			_, c := r.Dims()
			d := mat.NewVecDense(n, mat.Col(nil, c-1, r))
			d.SubVec(d, mat.NewVecDense(n, final))
			fmt.Printf("  member %d: %.3e\n", i, mat.Norm(d, 2))
		}
	}
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w, err := storage.ReadMatrixCSV(readoutFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, cfg.Storage.Driver, cfg.Storage.Dir)
	if err != nil {
		return err
	}
	defer st.Close()

	var result *experiment.Result
	var exp *experiment.Experiment
	err = runEngine(ctx, "closed-loop prediction", func(ctx context.Context, progress reservoir.ProgressFunc) error {
		e, err := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithProgress(progress))
		if err != nil {
			return err
		}
		res, err := e.Predict(ctx, w, predictSteps)
		if err != nil {
			return err
		}
		exp, result = e, res
		return nil
	})
	if err != nil {
		return err
	}

	runID, err := st.Save(ctx, exp.Metadata(result), result.States)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s closed-loop steps in %s\n", runID, humanize.Comma(int64(predictSteps)), result.Elapsed.Round(1e6))
	printMetrics(result.Metrics)

	rows, _ := result.Outputs.Dims()
	for i := 0; i < rows && i < 3; i++ {
		fmt.Println(asciigraph.Plot(downsample(mat.Row(nil, i, result.Outputs), 200),
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("output %d", i)),
		))
		fmt.Println()
	}
	return nil
}

func runLyapunov(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w, err := storage.ReadMatrixCSV(readoutFile)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	exp, err := experiment.New(cfg, experiment.WithLogger(logger))
	if err != nil {
		return err
	}
	lambda, err := exp.Lyapunov(ctx, w, lyapunovSteps)
	if err != nil {
		return err
	}

	fmt.Println(tui.Metric("largest exponent", fmt.Sprintf("%.4f", lambda)))
	if lambda > 0 {
		fmt.Println(tui.Metric("doubling time", fmt.Sprintf("%.4g", math.Ln2/lambda)))
	}
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore(ctx, driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := &automation.Runner{Store: st, Logger: logger}
	results, err := runner.Run(ctx, sc)
	for _, r := range results {
		line := fmt.Sprintf("%-16s %-9s", r.Step, r.Kind)
		switch {
		case r.Kind == "lyapunov":
			line += fmt.Sprintf(" lambda=%.4f", r.Lambda)
		case r.RunID != "":
			line += " saved as " + r.RunID
		}
		fmt.Println(line)
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(ctx, driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSOURCE\tNODES\tSTEPS\tDT\tBACKEND\tCREATED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%.4g\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.Source,
			run.Nodes,
			humanize.Comma(int64(run.Steps)),
			run.Dt,
			run.Backend,
			humanize.Time(run.Timestamp),
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(ctx, driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(ctx, args[0])
	if err != nil {
		return err
	}

	if asJSON {
		states, err := st.LoadStates(ctx, args[0])
		if err != nil {
			return err
		}
		return export.ExportJSON(os.Stdout, *meta, states)
	}

	fmt.Printf("id:        %s\n", meta.ID)
	fmt.Printf("kind:      %s\n", meta.Kind)
	fmt.Printf("created:   %s (%s)\n", meta.Timestamp.Format("2006-01-02 15:04:05"), humanize.Time(meta.Timestamp))
	fmt.Printf("source:    %s\n", meta.Source)
	fmt.Printf("backend:   %s\n", meta.Backend)
	fmt.Printf("shape:     %d nodes, %d inputs, %d controls\n", meta.Nodes, meta.Inputs, meta.Controls)
	fmt.Printf("steps:     %s (dt %g, gamma %g)\n", humanize.Comma(int64(meta.Steps)), meta.Dt, meta.Gamma)
	fmt.Printf("seed:      %d\n", meta.Seed)
	printMetrics(meta.Metrics)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(ctx, driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	states, err := st.LoadStates(ctx, args[0])
	if err != nil {
		return err
	}
	n, _ := states.Dims()

	for _, i := range plotNodes {
		if i < 0 || i >= n {
			return fmt.Errorf("node %d out of range [0, %d)", i, n)
		}
		fmt.Println(asciigraph.Plot(downsample(mat.Row(nil, i, states), 200),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("r%d", i)),
		))
		fmt.Println()
	}
	return nil
}

func exportPlot(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openStore(ctx, driver, dataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	meta, err := st.Load(ctx, args[0])
	if err != nil {
		return err
	}
	states, err := st.LoadStates(ctx, args[0])
	if err != nil {
		return err
	}

	path := exportOut
	if path == "" {
		path = meta.ID + ".png"
	}
	opts := export.DefaultPlotOptions()
	opts.Title = fmt.Sprintf("%s (%s, %d nodes)", meta.ID, meta.Source, meta.Nodes)
	if err := export.PlotTrajectory(path, states, meta.Dt, exportNodes, opts); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	presets := config.ListPresets(args[0])
	if len(presets) == 0 {
		fmt.Printf("no presets for source: %s\n", args[0])
		return nil
	}
	sort.Strings(presets)
	fmt.Printf("presets for %s:\n", args[0])
	for _, p := range presets {
		cfg := config.GetPreset(args[0], p)
		fmt.Printf("  %-10s %d nodes, rho %.2f, gamma %g, %s steps\n", p,
			cfg.Reservoir.Nodes, cfg.Reservoir.SpectralRadius, cfg.Reservoir.Gamma, humanize.Comma(int64(cfg.Drive.Steps)))
	}
	return nil
}

func listBackends(cmd *cobra.Command, args []string) error {
	fmt.Println("backends:")
	auto := compute.AutoSelectBackend().Name()
	for _, name := range compute.Names() {
		mark := ""
		if name == auto {
			mark = " (default)"
		}
		fmt.Printf("  %s%s\n", name, mark)
	}
	fmt.Println("drive sources:")
	for _, name := range experiment.NewRegistry().ListSources() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil && !errors.Is(err, config.ErrInvalid) {
		return err
	}
	if err != nil {
		logger.WithError(err).Warn("writing a configuration that does not validate")
		cfg = config.DefaultConfig()
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func printMetrics(m map[string]float64) {
	if len(m) == 0 {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("metrics:")
	for _, name := range names {
		fmt.Printf("  %-18s %s\n", name, humanize.FormatFloat("#,###.####", m[name]))
	}
}

// downsample keeps at most limit evenly spaced samples for terminal plots.
func downsample(data []float64, limit int) []float64 {
	if len(data) <= limit {
		return data
	}
	out := make([]float64, limit)
	stride := float64(len(data)-1) / float64(limit-1)
	for i := range out {
		out[i] = data[int(float64(i)*stride)]
	}
	return out
}
