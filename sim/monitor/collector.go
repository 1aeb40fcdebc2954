package monitor

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the kernel's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	Ticks          prometheus.Counter
	AgentSteps     prometheus.Counter
	Repetitions    prometheus.Counter
	BucketSize     prometheus.Histogram
	CommitDuration prometheus.Histogram
	PendingEvents  prometheus.Gauge
	SimTime        prometheus.Gauge
}

// NewCollector registers kernel metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	ticks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abm_ticks_total",
		Help: "Total number of executed time buckets.",
	}), "abm_ticks_total")
	if err != nil {
		return nil, err
	}
	steps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abm_agent_steps_total",
		Help: "Total number of agent step invocations.",
	}), "abm_agent_steps_total")
	if err != nil {
		return nil, err
	}
	reps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "abm_repetitions_total",
		Help: "Total number of completed repetitions.",
	}), "abm_repetitions_total")
	if err != nil {
		return nil, err
	}
	bucket, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abm_bucket_size",
		Help:    "Number of events executed per time bucket.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}), "abm_bucket_size")
	if err != nil {
		return nil, err
	}
	commit, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "abm_commit_duration_seconds",
		Help:    "Wall time spent committing shared structures after a tick.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	}), "abm_commit_duration_seconds")
	if err != nil {
		return nil, err
	}
	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "abm_pending_events",
		Help: "Events queued in the scheduler after the last tick.",
	}), "abm_pending_events")
	if err != nil {
		return nil, err
	}
	simTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "abm_sim_time",
		Help: "Simulated time of the last executed bucket.",
	}), "abm_sim_time")
	if err != nil {
		return nil, err
	}

	return &Collector{
		Ticks:          ticks,
		AgentSteps:     steps,
		Repetitions:    reps,
		BucketSize:     bucket,
		CommitDuration: commit,
		PendingEvents:  pending,
		SimTime:        simTime,
	}, nil
}

// ObserveTick records one executed bucket.
func (c *Collector) ObserveTick(bucketSize int, simTime float64, pending int) {
	if c == nil {
		return
	}
	c.Ticks.Inc()
	c.AgentSteps.Add(float64(bucketSize))
	c.BucketSize.Observe(float64(bucketSize))
	c.SimTime.Set(simTime)
	c.PendingEvents.Set(float64(pending))
}

// ObserveCommit records the duration of one commit barrier.
func (c *Collector) ObserveCommit(d time.Duration) {
	if c == nil {
		return
	}
	c.CommitDuration.Observe(d.Seconds())
}

// IncRepetitions records a completed repetition.
func (c *Collector) IncRepetitions() {
	if c == nil {
		return
	}
	c.Repetitions.Inc()
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
