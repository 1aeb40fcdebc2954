package trace

import "sync"

// TraceLevel controls the verbosity of execution tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelExecutions captures every executed event.
	TraceLevelExecutions TraceLevel = "executions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:       true,
	TraceLevelExecutions: true,
	"":                   true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects execution records during a run.
// Records are appended in bucket order, which is deterministic for any
// worker count, so two traces of the same run compare equal.
type SimulationTrace struct {
	Config     TraceConfig `json:"-"`
	mu         sync.Mutex
	Executions []ExecutionRecord `json:"executions"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:     config,
		Executions: make([]ExecutionRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelExecutions
}

// RecordExecution appends an execution record.
func (st *SimulationTrace) RecordExecution(record ExecutionRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Executions = append(st.Executions, record)
}

// Records returns a copy of the recorded executions.
func (st *SimulationTrace) Records() []ExecutionRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]ExecutionRecord, len(st.Executions))
	copy(out, st.Executions)
	return out
}
