package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate for malformed run configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// SchedulerConfig groups scheduler execution parameters.
type SchedulerConfig struct {
	Workers int // >1 executes each bucket on a worker pool; 0 or 1 = sequential
}

// RunConfig groups the parameters of a Driver run.
type RunConfig struct {
	Steps       uint64 // max ticks per repetition (must be > 0)
	Repetitions int    // independent repetitions (must be > 0)
	Seed        int64  // master seed; repetition r uses Seed+r
	Scheduler   SchedulerConfig
}

// NewSchedulerConfig creates a SchedulerConfig with all fields explicitly set.
func NewSchedulerConfig(workers int) SchedulerConfig {
	return SchedulerConfig{Workers: workers}
}

// NewRunConfig creates a RunConfig with all fields explicitly set.
func NewRunConfig(steps uint64, repetitions int, seed int64, sched SchedulerConfig) RunConfig {
	return RunConfig{
		Steps:       steps,
		Repetitions: repetitions,
		Seed:        seed,
		Scheduler:   sched,
	}
}

// Validate checks that all fields are usable.
func (c RunConfig) Validate() error {
	if c.Steps == 0 {
		return fmt.Errorf("%w: steps must be positive", ErrInvalidConfig)
	}
	if c.Repetitions <= 0 {
		return fmt.Errorf("%w: repetitions must be positive, got %d", ErrInvalidConfig, c.Repetitions)
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Scheduler.Workers)
	}
	return nil
}

// SeedFor returns the seed of repetition rep.
func (c RunConfig) SeedFor(rep int) int64 {
	return c.Seed + int64(rep)
}
