// Package sim provides the execution kernel of the agent-based simulation engine.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - agent.go: Agent and State contracts plus their optional capabilities
//   - scheduler.go: the event timeline, bucket execution and re-enrolment
//   - driver.go: the Driver run loop and the end-of-tick commit barrier
//
// # Architecture
//
// The sim package defines contracts and the scheduler; shared structures and
// collaborators live in sub-packages:
//   - sim/field/: double-buffered map, Grid2D, NumberGrid2D, Field2D
//   - sim/network/: Network and HNetwork (hypergraph)
//   - sim/monitor/: explicit monitoring context, Prometheus collector, tracing
//   - sim/trace/: execution trace recording
//   - sim/models/: reference models and their registry
//
// # Determinism
//
// Every shared structure separates its read view from a write log. Agents
// read the state as of the previous commit and stage writes; the Driver
// commits after the whole bucket has run. Buckets execute in (priority,
// insertion) order, so a run is reproducible regardless of whether the
// Scheduler uses one goroutine or a worker pool.
package sim
