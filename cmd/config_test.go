package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRunFile_FillsDefaultsForMissingKeys(t *testing.T) {
	// GIVEN a run file naming only the model and steps
	path := writeFile(t, "run.yaml", "model: heat\nsteps: 25\nparams:\n  width: 8\n")

	// WHEN loaded
	rf, err := LoadRunFile(path)

	// THEN listed keys are taken and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "heat", rf.Model)
	assert.Equal(t, uint64(25), rf.Steps)
	assert.Equal(t, 1, rf.Repetitions)
	assert.Equal(t, int64(42), rf.Seed)
	assert.Equal(t, yaml.MappingNode, rf.Params.Kind)
}

func TestLoadRunFile_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "run.yaml", "model: heat\nstesp: 25\n")

	_, err := LoadRunFile(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "stesp")
}

func TestLoadRunFile_MissingFile(t *testing.T) {
	_, err := LoadRunFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunFile)
		wantErr bool
	}{
		{name: "valid", mutate: func(rf *RunFile) {}},
		{name: "no model", mutate: func(rf *RunFile) { rf.Model = "" }, wantErr: true},
		{name: "bad trace level", mutate: func(rf *RunFile) { rf.TraceLevel = "verbose" }, wantErr: true},
		{name: "zero steps", mutate: func(rf *RunFile) { rf.Steps = 0 }, wantErr: true},
		{name: "negative workers", mutate: func(rf *RunFile) { rf.Workers = -1 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := DefaultRunFile()
			rf.Model = "heat"
			tt.mutate(&rf)
			err := rf.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// newFlagCommand binds the run flags to a fresh command so Changed state
// does not leak between tests.
func newFlagCommand() *cobra.Command {
	c := &cobra.Command{Use: "run"}
	c.Flags().StringVar(&modelName, "model", "", "")
	c.Flags().Uint64Var(&steps, "steps", 1000, "")
	c.Flags().IntVar(&repetitions, "reps", 1, "")
	c.Flags().Int64Var(&seed, "seed", 42, "")
	c.Flags().IntVar(&workers, "workers", 1, "")
	c.Flags().StringVar(&traceLevel, "trace-level", "none", "")
	return c
}

func TestApplyFlags_OnlyExplicitFlagsOverrideFile(t *testing.T) {
	// GIVEN a file with steps=25 and seed=7
	rf := DefaultRunFile()
	rf.Model = "heat"
	rf.Steps = 25
	rf.Seed = 7

	// WHEN the user sets only --workers
	c := newFlagCommand()
	require.NoError(t, c.Flags().Set("workers", "4"))
	rf.applyFlags(c)

	// THEN workers changes and file values survive the flag defaults
	assert.Equal(t, 4, rf.Workers)
	assert.Equal(t, uint64(25), rf.Steps)
	assert.Equal(t, int64(7), rf.Seed)
	assert.Equal(t, "heat", rf.Model)
}

func TestApplyFlags_ExplicitFlagBeatsFile(t *testing.T) {
	rf := DefaultRunFile()
	rf.Model = "heat"
	rf.Steps = 25

	c := newFlagCommand()
	require.NoError(t, c.Flags().Set("steps", "3"))
	require.NoError(t, c.Flags().Set("model", "virus"))
	rf.applyFlags(c)

	assert.Equal(t, uint64(3), rf.Steps)
	assert.Equal(t, "virus", rf.Model)
}
