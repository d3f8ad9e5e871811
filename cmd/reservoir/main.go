package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/reservoir/internal/config"
	"github.com/san-kum/reservoir/internal/logging"
	"github.com/san-kum/reservoir/internal/physics"
)

var (
	dataDir    string
	driver     string
	configFile string
	preset     string
	logLevel   string
	logFormat  string

	// reservoir overrides
	nodes          int
	dt             float64
	gamma          float64
	spectralRadius float64
	seed           int64
	backendName    string
	controlValues  []float64

	// drive overrides
	source    string
	driveFile string
	steps     int
	driveDt   float64
	washout   int
	x0        []float64

	overrides []string

	noTUI    bool
	ensemble int
	spread   float64

	readoutFile   string
	predictSteps  int
	lyapunovSteps int

	genSteps  int
	genDt     float64
	genX0     []float64
	genOut    string
	phaseAxes []int
	genSigma  float64
	genRho    float64
	genBeta   float64

	plotNodes   []int
	exportNodes []int
	exportOut   string
	asJSON      bool

	logger *logrus.Logger
)

// main registers the reservoir CLI commands and exits with status 1 when a
// command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "reservoir",
		Short:         "continuous-time tanh reservoir lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(logLevel, logFormat)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultStorageDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "file", "run store driver (file, sqlite)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	lorenzCmd := &cobra.Command{
		Use:   "lorenz",
		Short: "generate a Lorenz drive signal",
		RunE:  generateLorenz,
	}
	lorenzCmd.Flags().IntVar(&genSteps, "steps", 10000, "integration steps")
	lorenzCmd.Flags().Float64Var(&genDt, "dt", 0.001, "timestep")
	lorenzCmd.Flags().Float64SliceVar(&genX0, "x0", []float64{1, 1, 1}, "initial state")
	lorenzCmd.Flags().StringVarP(&genOut, "out", "o", "lorenz.csv", "output CSV (3 rows, one column per sample)")
	lorenzCmd.Flags().IntSliceVar(&phaseAxes, "phase", nil, "also write a phase plot of these two rows next to the CSV")
	lp := physics.DefaultLorenzParams()
	lorenzCmd.Flags().Float64Var(&genSigma, "sigma", lp.Sigma, "Lorenz sigma")
	lorenzCmd.Flags().Float64Var(&genRho, "rho", lp.Rho, "Lorenz rho")
	lorenzCmd.Flags().Float64Var(&genBeta, "beta", lp.Beta, "Lorenz beta")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "drive a reservoir and record its state trajectory",
		RunE:  runTrain,
	}
	addRunFlags(trainCmd)
	trainCmd.Flags().IntVar(&ensemble, "ensemble", 0, "also train this many reservoirs on perturbed drives")
	trainCmd.Flags().Float64Var(&spread, "spread", 1e-3, "initial-state offset between ensemble members")

	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "run the reservoir in closed loop through a readout",
		RunE:  runPredict,
	}
	addRunFlags(predictCmd)
	predictCmd.Flags().StringVar(&readoutFile, "readout", "", "readout matrix W as CSV (inputs x nodes)")
	predictCmd.Flags().IntVar(&predictSteps, "predict-steps", 5000, "closed-loop steps")
	_ = predictCmd.MarkFlagRequired("readout")

	lyapunovCmd := &cobra.Command{
		Use:   "lyapunov",
		Short: "estimate the largest Lyapunov exponent of the closed loop",
		RunE:  runLyapunov,
	}
	addRunFlags(lyapunovCmd)
	lyapunovCmd.Flags().StringVar(&readoutFile, "readout", "", "readout matrix W as CSV (inputs x nodes)")
	lyapunovCmd.Flags().IntVar(&lyapunovSteps, "lyapunov-steps", 20000, "integration steps for the estimate")
	_ = lyapunovCmd.MarkFlagRequired("readout")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of train, predict and lyapunov steps",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().BoolVar(&asJSON, "json", false, "print the run with its trajectory as JSON")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot node trajectories in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntSliceVar(&plotNodes, "nodes", []int{0, 1, 2}, "node indices")

	exportPlotCmd := &cobra.Command{
		Use:   "export-plot [run_id]",
		Short: "write node trajectories to an image (png, svg, pdf)",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPlot,
	}
	exportPlotCmd.Flags().IntSliceVar(&exportNodes, "nodes", nil, "node indices (default first five)")
	exportPlotCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <run_id>.png)")

	presetsCmd := &cobra.Command{
		Use:   "presets [source]",
		Short: "list available presets for a drive source",
		Args:  cobra.ExactArgs(1),
		RunE:  listPresets,
	}

	backendsCmd := &cobra.Command{
		Use:   "backends",
		Short: "list compute backends and drive sources",
		RunE:  listBackends,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the effective configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	configCmd.Flags().StringVar(&preset, "preset", "", "preset as source/name")

	rootCmd.AddCommand(lorenzCmd, trainCmd, predictCmd, lyapunovCmd, scenarioCmd, listCmd, showCmd, plotCmd, exportPlotCmd, presetsCmd, backendsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "preset as source/name, e.g. lorenz/small")
	cmd.Flags().IntVar(&nodes, "nodes", 0, "reservoir nodes")
	cmd.Flags().Float64Var(&dt, "dt", 0, "reservoir timestep")
	cmd.Flags().Float64Var(&gamma, "gamma", 0, "reservoir time constant")
	cmd.Flags().Float64Var(&spectralRadius, "spectral-radius", 0, "spectral radius of A")
	cmd.Flags().Int64Var(&seed, "seed", 0, "weight seed")
	cmd.Flags().StringVar(&backendName, "backend", "", "compute backend (blas, cpu)")
	cmd.Flags().Float64SliceVar(&controlValues, "control", nil, "control held during the run")
	cmd.Flags().StringVar(&source, "source", "", "drive source (lorenz, rossler, file)")
	cmd.Flags().StringVar(&driveFile, "drive-file", "", "drive CSV for --source file")
	cmd.Flags().IntVar(&steps, "steps", 0, "drive steps")
	cmd.Flags().Float64Var(&driveDt, "drive-dt", 0, "drive timestep")
	cmd.Flags().IntVar(&washout, "washout", 0, "steps integrated before recording")
	cmd.Flags().Float64SliceVar(&x0, "x0", nil, "drive initial state")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a config field as name=value (repeatable)")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "log progress instead of showing a progress bar")
}
