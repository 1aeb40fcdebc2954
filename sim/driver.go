// sim/driver.go
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/abm-sim/abm-sim/sim/monitor"
	"github.com/abm-sim/abm-sim/sim/trace"
)

// Driver owns the run loop: for each repetition it builds a State and a
// Scheduler, steps ticks until an end condition, and is the only caller of
// Commit on shared structures.
type Driver struct {
	cfg     RunConfig
	monitor *monitor.Monitor
	trace   *trace.SimulationTrace
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithMonitor attaches the monitoring context passed to collaborators.
func WithMonitor(m *monitor.Monitor) DriverOption {
	return func(d *Driver) { d.monitor = m }
}

// WithTrace records every executed event of every repetition into tr.
func WithTrace(tr *trace.SimulationTrace) DriverOption {
	return func(d *Driver) { d.trace = tr }
}

// NewDriver validates cfg and returns a Driver.
func NewDriver(cfg RunConfig, opts ...DriverOption) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.monitor == nil {
		d.monitor = monitor.New()
	}
	return d, nil
}

// Monitor returns the driver's monitoring context.
func (d *Driver) Monitor() *monitor.Monitor {
	return d.monitor
}

// Run executes every repetition. Cancelling ctx stops the run after the
// tick in progress; the partial report is returned with ctx's error.
func (d *Driver) Run(ctx context.Context, factory StateFactory) (*Report, error) {
	report := NewReport()
	for rep := 0; rep < d.cfg.Repetitions; rep++ {
		res, err := d.runRepetition(ctx, rep, factory)
		if err != nil {
			return report, err
		}
		report.Add(res)
		if res.StopReason == StopCanceled {
			return report, ctx.Err()
		}
	}
	return report, nil
}

func (d *Driver) runRepetition(ctx context.Context, rep int, factory StateFactory) (RepetitionResult, error) {
	res := RepetitionResult{
		Rep:   rep,
		RunID: uuid.NewString(),
		Seed:  d.cfg.SeedFor(rep),
	}
	ctx, span := d.monitor.Tracer.Start(ctx, "repetition", oteltrace.WithAttributes(
		attribute.Int("abm.rep", rep),
		attribute.String("abm.run_id", res.RunID),
		attribute.Int64("abm.seed", res.Seed),
	))
	defer span.End()

	d.monitor.ClearPlots()

	state, err := factory(rep)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("building state for repetition %d: %w", rep, err)
	}
	sched := NewScheduler(d.cfg.Scheduler,
		WithExecutionTrace(d.trace, rep),
		WithCollector(d.monitor.Collector),
	)
	if err := state.Init(sched); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("initialising repetition %d: %w", rep, err)
	}
	logrus.Infof("[rep %d] run %s starting with %d events, workers=%d", rep, res.RunID, sched.EventCount(), d.cfg.Scheduler.Workers)

	start := time.Now()
	res.StopReason = StopStepLimit
	for res.Steps < d.cfg.Steps {
		if ctx.Err() != nil {
			res.StopReason = StopCanceled
			break
		}
		if !sched.Step(state) {
			res.StopReason = StopNoEvents
			break
		}
		res.Steps++
		d.commit(state)
		if u, ok := state.(Updater); ok {
			u.Update(res.Steps)
		}
		if state.EndCondition(sched) {
			res.StopReason = StopEndCondition
			break
		}
	}
	res.Duration = time.Since(start)
	if secs := res.Duration.Seconds(); secs > 0 {
		res.StepsPerSecond = float64(res.Steps) / secs
	}
	res.FinalTime = sched.CurrentTime()
	res.PendingEvents = sched.EventCount()

	span.SetAttributes(
		attribute.Int64("abm.steps", int64(res.Steps)),
		attribute.Float64("abm.final_time", res.FinalTime),
		attribute.String("abm.stop_reason", string(res.StopReason)),
	)
	d.monitor.Collector.IncRepetitions()
	logrus.Infof("[rep %d] run %s ended after %d steps at t=%.3f (%s)", rep, res.RunID, res.Steps, res.FinalTime, res.StopReason)
	return res, nil
}

// commit is the end-of-tick barrier. Scheduler.Step has already waited for
// every agent of the bucket, so no reader or writer is in flight.
func (d *Driver) commit(state State) {
	c, ok := state.(Committer)
	if !ok {
		return
	}
	start := time.Now()
	c.Commit()
	d.monitor.Collector.ObserveCommit(time.Since(start))
}
