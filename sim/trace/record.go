// Package trace provides execution-trace recording for scheduler analysis.
// It has no dependencies on sim/ and stores pure data types.
package trace

// ExecutionRecord captures a single agent execution in its bucket order.
type ExecutionRecord struct {
	Rep      int     `json:"rep"`
	Step     uint64  `json:"step"`
	Time     float64 `json:"time"`
	Priority int     `json:"priority"`
	AgentID  uint64  `json:"agent_id"`
	Seq      uint64  `json:"seq"` // enrolment sequence, the tie-breaker within a priority
}
