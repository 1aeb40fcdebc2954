// Tracks per-repetition performance of a Driver run: ticks executed,
// simulated time reached, wall-clock duration and throughput.

package sim

import (
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/stat"
)

// StopReason records why a repetition ended.
type StopReason string

const (
	StopStepLimit    StopReason = "step_limit"    // Steps ticks executed
	StopEndCondition StopReason = "end_condition" // State.EndCondition returned true
	StopNoEvents     StopReason = "no_events"     // scheduler ran dry
	StopCanceled     StopReason = "canceled"      // context done between ticks
)

// RepetitionResult summarises one repetition.
type RepetitionResult struct {
	Rep            int           `json:"rep"`
	RunID          string        `json:"run_id"`
	Seed           int64         `json:"seed"`
	Steps          uint64        `json:"steps"`
	FinalTime      float64       `json:"final_time"`
	PendingEvents  int           `json:"pending_events"`
	Duration       time.Duration `json:"duration_ns"`
	StepsPerSecond float64       `json:"steps_per_second"`
	StopReason     StopReason    `json:"stop_reason"`
}

// Report aggregates every repetition of a Driver run.
type Report struct {
	Repetitions []RepetitionResult `json:"repetitions"`
}

// NewReport creates an empty Report.
func NewReport() *Report {
	return &Report{Repetitions: make([]RepetitionResult, 0)}
}

// Add appends a repetition result.
func (r *Report) Add(res RepetitionResult) {
	r.Repetitions = append(r.Repetitions, res)
}

// ReportSummary holds cross-repetition statistics.
type ReportSummary struct {
	Repetitions          int
	TotalSteps           uint64
	MeanStepsPerSecond   float64
	StdDevStepsPerSecond float64
	MeanDuration         time.Duration
}

// Summary computes mean and standard deviation across repetitions.
// Safe on an empty report (returns zero-value fields).
func (r *Report) Summary() ReportSummary {
	s := ReportSummary{Repetitions: len(r.Repetitions)}
	if len(r.Repetitions) == 0 {
		return s
	}
	rates := make([]float64, len(r.Repetitions))
	durations := make([]float64, len(r.Repetitions))
	for i, rep := range r.Repetitions {
		s.TotalSteps += rep.Steps
		rates[i] = rep.StepsPerSecond
		durations[i] = float64(rep.Duration)
	}
	if len(rates) > 1 {
		s.MeanStepsPerSecond, s.StdDevStepsPerSecond = stat.MeanStdDev(rates, nil)
	} else {
		s.MeanStepsPerSecond = rates[0]
	}
	s.MeanDuration = time.Duration(stat.Mean(durations, nil))
	return s
}

// Print displays the report on stdout.
func (r *Report) Print() {
	r.Fprint(os.Stdout)
}

// Fprint writes the report to w.
func (r *Report) Fprint(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Report ===")
	fmt.Fprintf(w, "%6s|%10s|%14s|%14s|%12s| %s\n", "#Rep", "Steps", "Sim Time", "Steps/Second", "Time", "Stop")
	for _, rep := range r.Repetitions {
		fmt.Fprintf(w, "%6d|%10d|%14.3f|%14.2f|%11.4fs| %s\n",
			rep.Rep, rep.Steps, rep.FinalTime, rep.StepsPerSecond, rep.Duration.Seconds(), rep.StopReason)
	}
	s := r.Summary()
	if s.Repetitions > 0 {
		fmt.Fprintf(w, "Avg. Steps/Second   : %.2f (stddev %.2f)\n", s.MeanStepsPerSecond, s.StdDevStepsPerSecond)
		fmt.Fprintf(w, "Avg. Time           : %.4fs\n", s.MeanDuration.Seconds())
		fmt.Fprintf(w, "Total Steps         : %d\n", s.TotalSteps)
	}
}
