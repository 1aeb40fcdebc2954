package sim

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abm-sim/abm-sim/sim/trace"
)

func newTestScheduler(workers int) *Scheduler {
	return NewScheduler(NewSchedulerConfig(workers))
}

func runSteps(s *Scheduler, st State, n int) int {
	ran := 0
	for i := 0; i < n && s.Step(st); i++ {
		ran++
	}
	return ran
}

func TestScheduler_EarlierBucketsRunFirst(t *testing.T) {
	// GIVEN events enrolled out of time order
	s := newTestScheduler(1)
	rec := &recorder{}
	for _, at := range []float64{3, 1, 2, 1} {
		a := newRecAgent(AgentID(at*10), rec, s)
		_, err := s.ScheduleOnce(a, at, 0)
		require.NoError(t, err)
	}

	// WHEN every bucket runs
	ran := runSteps(s, &testState{}, 10)

	// THEN buckets execute in time order, one bucket per step
	assert.Equal(t, 3, ran)
	assert.Equal(t, []AgentID{10, 10, 20, 30}, rec.agents())
	calls := rec.snapshot()
	for i := 1; i < len(calls); i++ {
		assert.LessOrEqual(t, calls[i-1].time, calls[i].time)
	}
	assert.False(t, s.Step(&testState{}))
}

func TestScheduler_PriorityBreaksTies(t *testing.T) {
	tests := []struct {
		name       string
		enrolFirst string
	}{
		{"A enrolled first", "A"},
		{"B enrolled first", "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN A(t=5, p=2) and B(t=5, p=1)
			s := newTestScheduler(1)
			rec := &recorder{}
			a := newRecAgent(1, rec, s)
			b := newRecAgent(2, rec, s)
			enrol := map[string]func(){
				"A": func() { _, _ = s.ScheduleOnce(a, 5, 2) },
				"B": func() { _, _ = s.ScheduleOnce(b, 5, 1) },
			}
			if tt.enrolFirst == "A" {
				enrol["A"]()
				enrol["B"]()
			} else {
				enrol["B"]()
				enrol["A"]()
			}

			// WHEN the bucket runs
			require.True(t, s.Step(&testState{}))

			// THEN B runs before A regardless of insertion order
			assert.Equal(t, []AgentID{2, 1}, rec.agents())
		})
	}
}

func TestScheduler_InsertionOrderBreaksPriorityTies(t *testing.T) {
	s := newTestScheduler(1)
	rec := &recorder{}
	for _, id := range []AgentID{5, 3, 9} {
		_, err := s.ScheduleOnce(newRecAgent(id, rec, s), 1, 0)
		require.NoError(t, err)
	}
	s.Step(&testState{})
	assert.Equal(t, []AgentID{5, 3, 9}, rec.agents())
}

func TestScheduler_RepeatingRunsEveryInterval(t *testing.T) {
	// GIVEN a repeating enrolment at t=0 with interval 1.0
	s := newTestScheduler(1)
	rec := &recorder{}
	_, err := s.ScheduleRepeating(newRecAgent(1, rec, s), 0, 0, 1.0)
	require.NoError(t, err)

	// WHEN stepping N times
	const n = 7
	require.Equal(t, n, runSteps(s, &testState{}, n))

	// THEN the agent ran exactly N times at 0..N-1
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, rec.times(1))
	assert.Equal(t, 1, s.EventCount())
	assert.Equal(t, 6.0, s.CurrentTime())
	assert.Equal(t, uint64(n), s.StepCount())
}

func TestScheduler_DualEnrollment(t *testing.T) {
	// GIVEN a repeating enrolment from 0 plus a one-shot at 5 for the same agent
	s := newTestScheduler(1)
	rec := &recorder{}
	a := newRecAgent(1, rec, s)
	_, err := s.ScheduleRepeating(a, 0, 0, 1)
	require.NoError(t, err)
	_, err = s.ScheduleOnce(a, 5, 0)
	require.NoError(t, err)

	// WHEN stepping through t=5
	runSteps(s, &testState{}, 6)

	// THEN it runs once at 0..4 and twice at 5
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 5}, rec.times(1))
}

func TestScheduler_StoppedAgentNeverRunsAgain(t *testing.T) {
	// GIVEN a repeating agent that stops after 3 steps and also has a later one-shot
	s := newTestScheduler(1)
	rec := &recorder{}
	a := newRecAgent(1, rec, s)
	a.stopAfter = 3
	_, err := s.ScheduleRepeating(a, 0, 0, 1)
	require.NoError(t, err)
	_, err = s.ScheduleOnce(a, 10, 0)
	require.NoError(t, err)
	other := newRecAgent(2, rec, s)
	_, err = s.ScheduleRepeating(other, 0, 1, 1)
	require.NoError(t, err)

	// WHEN stepping well past both enrolments
	runSteps(s, &testState{}, 20)

	// THEN the stopped agent ran 3 times and every enrolment of it is gone
	assert.Equal(t, []float64{0, 1, 2}, rec.times(1))
	assert.Len(t, rec.times(2), 20)
	assert.Equal(t, 1, s.EventCount())
}

func TestScheduler_ScheduleErrors(t *testing.T) {
	s := newTestScheduler(1)
	rec := &recorder{}
	a := newRecAgent(1, rec, s)
	_, err := s.ScheduleOnce(a, 2, 0)
	require.NoError(t, err)
	require.True(t, s.Step(&testState{}))

	tests := []struct {
		name     string
		schedule func() error
		want     error
	}{
		{"time before current", func() error { _, err := s.ScheduleOnce(a, 1.5, 0); return err }, ErrInvalidScheduleTime},
		{"NaN time", func() error { _, err := s.ScheduleOnce(a, math.NaN(), 0); return err }, ErrInvalidScheduleTime},
		{"infinite time", func() error { _, err := s.ScheduleOnce(a, math.Inf(1), 0); return err }, ErrInvalidScheduleTime},
		{"zero interval", func() error { _, err := s.ScheduleRepeating(a, 3, 0, 0); return err }, ErrInvalidInterval},
		{"negative interval", func() error { _, err := s.ScheduleRepeating(a, 3, 0, -1); return err }, ErrInvalidInterval},
		{"NaN interval", func() error { _, err := s.ScheduleRepeating(a, 3, 0, math.NaN()); return err }, ErrInvalidInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	// THEN scheduling at the current time is still allowed
	_, err = s.ScheduleOnce(a, 2, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.EventCount())
}

func TestScheduler_Cancel(t *testing.T) {
	s := newTestScheduler(1)
	rec := &recorder{}
	a := newRecAgent(1, rec, s)
	h, err := s.ScheduleOnce(a, 1, 0)
	require.NoError(t, err)
	_, err = s.ScheduleOnce(a, 2, 0)
	require.NoError(t, err)

	assert.True(t, s.Cancel(h))
	assert.False(t, s.Cancel(h))
	assert.False(t, s.Cancel(EventHandle(999)))
	assert.Equal(t, 1, s.EventCount())

	runSteps(s, &testState{}, 5)
	assert.Equal(t, []float64{2}, rec.times(1))
}

func TestScheduler_CancelRepeatingFromInsideItsBucket(t *testing.T) {
	// GIVEN a repeating agent that cancels its own enrolment on its third step
	s := newTestScheduler(1)
	rec := &recorder{}
	a := newRecAgent(1, rec, s)
	h, err := s.ScheduleRepeating(a, 0, 0, 1)
	require.NoError(t, err)
	a.onStep = func(a *recAgent) {
		if a.steps.Load() == 3 {
			assert.True(t, s.Cancel(h))
		}
	}

	// WHEN stepping
	runSteps(s, &testState{}, 10)

	// THEN it is not re-enrolled
	assert.Equal(t, []float64{0, 1, 2}, rec.times(1))
	assert.Equal(t, 0, s.EventCount())
	assert.False(t, s.Cancel(h))
}

func TestScheduler_EnrolmentsDuringBucketRunNextStep(t *testing.T) {
	// GIVEN an agent that enrols a child at the current time
	s := newTestScheduler(1)
	rec := &recorder{}
	child := newRecAgent(2, rec, s)
	parent := newRecAgent(1, rec, s)
	parent.onStep = func(*recAgent) {
		_, err := s.ScheduleOnce(child, s.CurrentTime(), 0)
		assert.NoError(t, err)
	}
	_, err := s.ScheduleOnce(parent, 4, 0)
	require.NoError(t, err)

	// WHEN the first bucket runs
	require.True(t, s.Step(&testState{}))

	// THEN the child is queued for a following bucket at the same time
	assert.Equal(t, []AgentID{1}, rec.agents())
	assert.Equal(t, 1, s.EventCount())
	require.True(t, s.Step(&testState{}))
	assert.Equal(t, []float64{4}, rec.times(2))
}

func TestScheduler_CancelStagedEnrolment(t *testing.T) {
	s := newTestScheduler(1)
	rec := &recorder{}
	child := newRecAgent(2, rec, s)
	parent := newRecAgent(1, rec, s)
	parent.onStep = func(*recAgent) {
		h, err := s.ScheduleOnce(child, 9, 0)
		require.NoError(t, err)
		assert.True(t, s.Cancel(h))
	}
	_, err := s.ScheduleOnce(parent, 0, 0)
	require.NoError(t, err)

	runSteps(s, &testState{}, 5)
	assert.Equal(t, 0, s.EventCount())
	assert.Empty(t, rec.times(2))
}

func TestScheduler_CancelOneShotInRunningBucketIsNoOp(t *testing.T) {
	// GIVEN two one-shot agents sharing the bucket at t=0
	s := newTestScheduler(1)
	rec := &recorder{}
	first := newRecAgent(1, rec, s)
	second := newRecAgent(2, rec, s)
	hFirst, err := s.ScheduleOnce(first, 0, 0)
	require.NoError(t, err)
	hSecond, err := s.ScheduleOnce(second, 0, 1)
	require.NoError(t, err)

	// WHEN the first cancels its own executing event and its bucket peer
	first.onStep = func(*recAgent) {
		assert.False(t, s.Cancel(hFirst))
		assert.False(t, s.Cancel(hSecond))
	}
	runSteps(s, &testState{}, 3)

	// THEN both events ran and neither handle remains cancellable
	assert.Equal(t, []AgentID{1, 2}, rec.agents())
	assert.False(t, s.Cancel(hFirst))
	assert.False(t, s.Cancel(hSecond))
}

func TestScheduler_HooksRunInOrder(t *testing.T) {
	s := newTestScheduler(1)
	a := &hookAgent{id: 1}
	_, err := s.ScheduleOnce(a, 0, 0)
	require.NoError(t, err)
	s.Step(&testState{})
	assert.Equal(t, []string{"before", "step", "after"}, a.calls)
}

func TestScheduler_CurrentTimeNeverDecreases(t *testing.T) {
	s := newTestScheduler(1)
	rec := &recorder{}
	for i := 0; i < 20; i++ {
		a := newRecAgent(AgentID(i), rec, s)
		_, err := s.ScheduleRepeating(a, float64(i%5)*0.5, i%3, 0.75+float64(i%4)*0.25)
		require.NoError(t, err)
	}
	prev := s.CurrentTime()
	for i := 0; i < 100 && s.Step(&testState{}); i++ {
		now := s.CurrentTime()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

// spawnWorld builds a bucket-heavy schedule in which agents also enrol each
// other from inside their steps, so sequencing of staged enrolments matters.
func spawnWorld(t *testing.T, workers int) ([]trace.ExecutionRecord, []execution) {
	t.Helper()
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelExecutions})
	s := NewScheduler(NewSchedulerConfig(workers), WithExecutionTrace(tr, 0))
	rec := &recorder{}
	agents := make([]*recAgent, 40)
	for i := range agents {
		agents[i] = newRecAgent(AgentID(i), rec, s)
	}
	for i, a := range agents {
		peer := agents[(i*7+3)%len(agents)]
		a.onStep = func(self *recAgent) {
			if self.steps.Load()%3 == 0 {
				_, err := s.ScheduleOnce(peer, s.CurrentTime()+1, int(self.id%2))
				assert.NoError(t, err)
			}
		}
		_, err := s.ScheduleRepeating(a, 0, i%3, 1)
		require.NoError(t, err)
	}
	runSteps(s, &testState{}, 30)
	for _, a := range agents {
		assert.False(t, a.overlap.Load(), "agent %d ran concurrently with itself", a.id)
	}
	return tr.Records(), rec.snapshot()
}

func TestScheduler_ParallelMatchesSequential(t *testing.T) {
	// GIVEN the same workload run sequentially and on several worker counts
	wantTrace, wantCalls := spawnWorld(t, 1)
	require.NotEmpty(t, wantTrace)

	for _, workers := range []int{2, 4, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			gotTrace, gotCalls := spawnWorld(t, workers)

			// THEN the bucket order is identical
			assert.Equal(t, wantTrace, gotTrace)
			// and every agent saw the same execution times
			assert.ElementsMatch(t, wantCalls, gotCalls)
		})
	}
}

func TestScheduler_ParallelPanicSurfacesOnCaller(t *testing.T) {
	s := newTestScheduler(4)
	rec := &recorder{}
	for i := 0; i < 8; i++ {
		_, err := s.ScheduleOnce(newRecAgent(AgentID(i), rec, s), 0, 0)
		require.NoError(t, err)
	}
	_, err := s.ScheduleOnce(&panicAgent{id: 99}, 0, 0)
	require.NoError(t, err)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		var ap *AgentPanic
		require.True(t, errors.As(r.(error), &ap))
		assert.Equal(t, AgentID(99), ap.Agent)
		assert.Equal(t, "boom", ap.Value)
	}()
	s.Step(&testState{})
	t.Fatal("Step should have panicked")
}

func TestPartitionByAgent(t *testing.T) {
	rec := &recorder{}
	a := newRecAgent(1, rec, nil)
	b := newRecAgent(2, rec, nil)
	bucket := []*ScheduledEvent{
		{Agent: b, seq: 0}, {Agent: a, seq: 1}, {Agent: b, seq: 2},
	}
	groups := partitionByAgent(bucket)
	require.Len(t, groups, 2)
	assert.Equal(t, []*ScheduledEvent{bucket[0], bucket[2]}, groups[0])
	assert.Equal(t, []*ScheduledEvent{bucket[1]}, groups[1])
}
