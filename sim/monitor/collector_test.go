package monitor

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCollector_ObserveTick_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.ObserveTick(3, 2.5, 7)
	c.ObserveTick(2, 3.5, 4)

	if got := testutil.ToFloat64(c.Ticks); got != 2 {
		t.Errorf("abm_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.AgentSteps); got != 5 {
		t.Errorf("abm_agent_steps_total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.SimTime); got != 3.5 {
		t.Errorf("abm_sim_time = %v, want 3.5", got)
	}
	if got := testutil.ToFloat64(c.PendingEvents); got != 4 {
		t.Errorf("abm_pending_events = %v, want 4", got)
	}
	if n := histogramSampleCount(t, reg, "abm_bucket_size"); n != 2 {
		t.Errorf("abm_bucket_size sample_count = %d, want 2", n)
	}
}

func TestCollector_ObserveCommitAndRepetitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.ObserveCommit(time.Millisecond)
	c.IncRepetitions()

	if n := histogramSampleCount(t, reg, "abm_commit_duration_seconds"); n != 1 {
		t.Errorf("abm_commit_duration_seconds sample_count = %d, want 1", n)
	}
	if got := testutil.ToFloat64(c.Repetitions); got != 1 {
		t.Errorf("abm_repetitions_total = %v, want 1", got)
	}
}

func TestCollector_RegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	second.ObserveTick(1, 0, 0)
	if got := testutil.ToFloat64(first.Ticks); got != 1 {
		t.Errorf("shared abm_ticks_total = %v, want 1", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveTick(1, 1, 1)
	c.ObserveCommit(time.Second)
	c.IncRepetitions()
}

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		var total uint64
		for _, m := range mf.GetMetric() {
			total += m.GetHistogram().GetSampleCount()
		}
		return total
	}
	return 0
}
