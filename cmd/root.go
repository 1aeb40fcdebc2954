package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/models"
	"github.com/abm-sim/abm-sim/sim/monitor"
	"github.com/abm-sim/abm-sim/sim/trace"
)

var (
	configPath  string // YAML run file
	modelName   string // registered model name
	steps       uint64 // max ticks per repetition
	repetitions int    // independent repetitions
	seed        int64  // master seed
	workers     int    // bucket worker pool size
	traceLevel  string // none | executions
	logLevel    string // Log verbosity level
	traceOut    string // execution trace destination (.zst compresses)
	metricsOut  string // Prometheus textfile destination
	otelStdout  bool   // export repetition spans to stderr
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "abm-sim",
	Short: "Deterministic agent-based simulation engine",
}

// outputs groups the optional artifact destinations of a run.
type outputs struct {
	Trace      string
	Metrics    string
	OTelStdout bool
}

// runSimulation executes rf and writes the report and plots to w.
func runSimulation(ctx context.Context, rf *RunFile, out outputs, w io.Writer) (*sim.Report, error) {
	if err := rf.Validate(); err != nil {
		return nil, err
	}
	build, err := models.Lookup(rf.Model)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	collector, err := monitor.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	tp, shutdown, err := monitor.InitTracing(ctx, monitor.TracingConfig{
		Enabled: out.OTelStdout,
		Writer:  os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := monitor.ShutdownWithTimeout(context.Background(), shutdown); err != nil {
			logrus.Warnf("tracer shutdown: %v", err)
		}
	}()
	mon := monitor.New(monitor.WithCollector(collector), monitor.WithTracerProvider(tp))

	cfg := rf.RunConfig()
	factory, err := build(&rf.Params, models.Env{Run: cfg, Monitor: mon})
	if err != nil {
		return nil, err
	}

	opts := []sim.DriverOption{sim.WithMonitor(mon)}
	var tr *trace.SimulationTrace
	if trace.TraceLevel(rf.TraceLevel) == trace.TraceLevelExecutions {
		tr = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelExecutions})
		opts = append(opts, sim.WithTrace(tr))
	}
	driver, err := sim.NewDriver(cfg, opts...)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Starting model %q: steps=%d repetitions=%d seed=%d workers=%d",
		rf.Model, rf.Steps, rf.Repetitions, rf.Seed, rf.Workers)
	report, runErr := driver.Run(ctx, factory)
	report.Fprint(w)
	printPlots(w, mon)

	if tr != nil && out.Trace != "" {
		if err := writeTrace(out.Trace, tr); err != nil {
			return report, err
		}
		logrus.Infof("Trace written to %s (%d executions)", out.Trace, len(tr.Records()))
	}
	if out.Metrics != "" {
		if err := writeMetrics(out.Metrics, reg); err != nil {
			return report, err
		}
	}
	return report, runErr
}

// printPlots writes the last sample of every plot series.
func printPlots(w io.Writer, mon *monitor.Monitor) {
	for _, name := range mon.PlotNames() {
		p, ok := mon.PlotSnapshot(name)
		if !ok {
			continue
		}
		series := make([]string, 0, len(p.Series))
		for s := range p.Series {
			series = append(series, s)
		}
		slices.Sort(series)
		for _, s := range series {
			pts := p.Series[s]
			if len(pts) == 0 {
				continue
			}
			last := pts[len(pts)-1]
			fmt.Fprintf(w, "%-20s: %s=%.4f at %s=%.0f\n", name+"/"+s, p.YLabel, last.Y, p.XLabel, last.X)
		}
	}
}

// runCmd executes the simulation using the run file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a registered model",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		rf := DefaultRunFile()
		if configPath != "" {
			loaded, err := LoadRunFile(configPath)
			if err != nil {
				logrus.Fatalf("unable to read run file; %v", err)
			}
			rf = *loaded
		}
		rf.applyFlags(cmd)
		if traceOut != "" && !cmd.Flags().Changed("trace-level") && rf.TraceLevel == string(trace.TraceLevelNone) {
			rf.TraceLevel = string(trace.TraceLevelExecutions)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		_, err = runSimulation(ctx, &rf, outputs{Trace: traceOut, Metrics: metricsOut, OTelStdout: otelStdout}, os.Stdout)
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// modelsCmd lists the registered models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List registered models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range models.ValidModelNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

// inspectCmd summarizes a trace file written by `run --trace-out`
var inspectCmd = &cobra.Command{
	Use:   "inspect <trace-file>",
	Short: "Summarize an execution trace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tr, err := readTrace(args[0])
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		printSummary(cmd.OutOrStdout(), trace.Summarize(tr))
	},
}

func printSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Executions     : %d\n", s.TotalExecutions)
	fmt.Fprintf(w, "Repetitions    : %d\n", s.Repetitions)
	fmt.Fprintf(w, "Distinct times : %d\n", s.DistinctTimes)
	fmt.Fprintf(w, "Unique agents  : %d\n", s.UniqueAgents)
	fmt.Fprintf(w, "Largest bucket : %d\n", s.MaxBucketSize)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run file (model, steps, params, ...)")
	runCmd.Flags().StringVar(&modelName, "model", "", "Registered model name (see `abm-sim models`)")
	runCmd.Flags().Uint64Var(&steps, "steps", 1000, "Max ticks per repetition")
	runCmd.Flags().IntVar(&repetitions, "reps", 1, "Number of independent repetitions")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed; repetition r uses seed+r")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Worker goroutines per bucket (1 = sequential)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Execution trace level (none, executions)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Outputs
	runCmd.Flags().StringVar(&traceOut, "trace-out", "", "Write execution trace as JSON lines (.zst suffix compresses)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics in text format")
	runCmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "Export repetition spans to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(inspectCmd)
}
