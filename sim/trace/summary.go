package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalExecutions   int
	Repetitions       int
	DistinctTimes     int
	UniqueAgents      int
	MaxBucketSize     int
	AgentDistribution map[uint64]int // agent ID → executions
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		AgentDistribution: make(map[uint64]int),
	}
	if st == nil {
		return summary
	}

	type bucketKey struct {
		rep  int
		step uint64
	}
	reps := make(map[int]bool)
	times := make(map[float64]bool)
	buckets := make(map[bucketKey]int)

	for _, r := range st.Records() {
		summary.TotalExecutions++
		summary.AgentDistribution[r.AgentID]++
		reps[r.Rep] = true
		times[r.Time] = true
		k := bucketKey{rep: r.Rep, step: r.Step}
		buckets[k]++
		if buckets[k] > summary.MaxBucketSize {
			summary.MaxBucketSize = buckets[k]
		}
	}

	summary.Repetitions = len(reps)
	summary.DistinctTimes = len(times)
	summary.UniqueAgents = len(summary.AgentDistribution)
	return summary
}
