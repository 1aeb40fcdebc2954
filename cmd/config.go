package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abm-sim/abm-sim/sim"
	"github.com/abm-sim/abm-sim/sim/trace"
)

// RunFile is the YAML run description accepted by `abm-sim run --config`.
// All top-level keys must be listed to satisfy KnownFields(true) strict parsing.
type RunFile struct {
	Model       string    `yaml:"model"`
	Steps       uint64    `yaml:"steps"`
	Repetitions int       `yaml:"repetitions"`
	Seed        int64     `yaml:"seed"`
	Workers     int       `yaml:"workers"`
	TraceLevel  string    `yaml:"trace_level"`
	Params      yaml.Node `yaml:"params"` // model-specific, decoded by the model
}

// DefaultRunFile returns the values used for keys absent from the file and
// flags left unset.
func DefaultRunFile() RunFile {
	return RunFile{
		Steps:       1000,
		Repetitions: 1,
		Seed:        42,
		Workers:     1,
		TraceLevel:  string(trace.TraceLevelNone),
	}
}

// LoadRunFile reads and parses a YAML run file on top of the defaults.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	rf := DefaultRunFile()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil {
		return nil, fmt.Errorf("parsing run file: %w", err)
	}
	return &rf, nil
}

// applyFlags overrides rf with every flag the user set explicitly, so file
// values are never clobbered by flag defaults.
func (rf *RunFile) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		rf.Model = modelName
	}
	if flags.Changed("steps") {
		rf.Steps = steps
	}
	if flags.Changed("reps") {
		rf.Repetitions = repetitions
	}
	if flags.Changed("seed") {
		rf.Seed = seed
	}
	if flags.Changed("workers") {
		rf.Workers = workers
	}
	if flags.Changed("trace-level") {
		rf.TraceLevel = traceLevel
	}
}

// Validate checks the fields the kernel does not validate itself.
func (rf *RunFile) Validate() error {
	if rf.Model == "" {
		return fmt.Errorf("model name not provided")
	}
	if !trace.IsValidTraceLevel(rf.TraceLevel) {
		return fmt.Errorf("unknown trace level %q; valid: none, executions", rf.TraceLevel)
	}
	return rf.RunConfig().Validate()
}

// RunConfig converts the file into the Driver's configuration.
func (rf *RunFile) RunConfig() sim.RunConfig {
	return sim.NewRunConfig(rf.Steps, rf.Repetitions, rf.Seed, sim.NewSchedulerConfig(rf.Workers))
}
