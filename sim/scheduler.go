// sim/scheduler.go
package sim

import (
	"cmp"
	"container/heap"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abm-sim/abm-sim/sim/monitor"
	"github.com/abm-sim/abm-sim/sim/trace"
)

var (
	// ErrInvalidScheduleTime is returned when an event time is not finite or
	// lies before the scheduler's current time.
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	// ErrInvalidInterval is returned when a repeat interval is not a positive finite number.
	ErrInvalidInterval = errors.New("invalid repeat interval")
)

// Scheduler is a priority-ordered event timeline. Each call to Step executes
// every event due at the earliest pending time, in (priority, insertion)
// order, then re-enrols repeating events.
//
// ScheduleOnce, ScheduleRepeating and Cancel may be called from agent steps,
// including concurrently when the scheduler runs buckets in parallel.
// Enrolments made while a bucket runs are staged and sequenced at the end of
// the bucket in (agent, time, priority, interval) order, so the resulting
// timeline does not depend on which worker called first.
type Scheduler struct {
	mu          sync.Mutex
	queue       EventQueue
	pending     map[EventHandle]*ScheduledEvent // queued, staged or in-flight
	byAgent     map[AgentID]map[EventHandle]*ScheduledEvent
	staged      []*ScheduledEvent
	running     bool
	nextSeq     uint64
	nextHandle  uint64
	currentTime float64
	stepCount   uint64

	workers   int
	trace     *trace.SimulationTrace
	rep       int
	collector *monitor.Collector
}

// SchedulerOption configures optional instrumentation of a Scheduler.
type SchedulerOption func(*Scheduler)

// WithExecutionTrace records every executed event into tr, tagged with repetition rep.
func WithExecutionTrace(tr *trace.SimulationTrace, rep int) SchedulerOption {
	return func(s *Scheduler) {
		s.trace = tr
		s.rep = rep
	}
}

// WithCollector reports tick-level metrics to c.
func WithCollector(c *monitor.Collector) SchedulerOption {
	return func(s *Scheduler) {
		s.collector = c
	}
}

// NewScheduler creates an empty scheduler at time 0.
func NewScheduler(cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:   make(EventQueue, 0),
		pending: make(map[EventHandle]*ScheduledEvent),
		byAgent: make(map[AgentID]map[EventHandle]*ScheduledEvent),
		workers: cfg.Workers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleOnce enrols agent a for a single execution at time t.
func (s *Scheduler) ScheduleOnce(a Agent, t float64, priority int) (EventHandle, error) {
	return s.schedule(a, t, priority, 0)
}

// ScheduleRepeating enrols agent a at time t and re-enrols it every interval
// after each execution, until it reports stopped or the event is cancelled.
func (s *Scheduler) ScheduleRepeating(a Agent, t float64, priority int, interval float64) (EventHandle, error) {
	if math.IsNaN(interval) || math.IsInf(interval, 0) || interval <= 0 {
		return 0, fmt.Errorf("%w: %v must be positive and finite", ErrInvalidInterval, interval)
	}
	return s.schedule(a, t, priority, interval)
}

func (s *Scheduler) schedule(a Agent, t float64, priority int, interval float64) (EventHandle, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidScheduleTime, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t < s.currentTime {
		return 0, fmt.Errorf("%w: %v precedes current time %v", ErrInvalidScheduleTime, t, s.currentTime)
	}
	ev := &ScheduledEvent{
		Agent:    a,
		Time:     t,
		Priority: priority,
		Interval: interval,
		handle:   EventHandle(s.nextHandle),
		index:    -1,
	}
	s.nextHandle++

	s.pending[ev.handle] = ev
	id := a.ID()
	if s.byAgent[id] == nil {
		s.byAgent[id] = make(map[EventHandle]*ScheduledEvent)
	}
	s.byAgent[id][ev.handle] = ev

	if s.running {
		ev.staged = true
		s.staged = append(s.staged, ev)
	} else {
		s.enqueue(ev)
	}
	return ev.handle, nil
}

// enqueue assigns the next sequence number and queues ev. Must hold s.mu.
func (s *Scheduler) enqueue(ev *ScheduledEvent) {
	ev.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, ev)
}

// flushStaged queues the enrolments made during the bucket. Must hold s.mu.
func (s *Scheduler) flushStaged() {
	staged := s.staged
	s.staged = nil
	slices.SortFunc(staged, func(a, b *ScheduledEvent) int {
		// First non-zero comparison (cmp.Or needs go1.22).
		for _, c := range [...]int{
			cmp.Compare(a.Agent.ID(), b.Agent.ID()),
			cmp.Compare(a.Time, b.Time),
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(a.Interval, b.Interval),
			cmp.Compare(a.handle, b.handle),
		} {
			if c != 0 {
				return c
			}
		}
		return 0
	})
	for _, ev := range staged {
		ev.staged = false
		if ev.canceled {
			s.forget(ev)
			continue
		}
		s.enqueue(ev)
	}
}

// Cancel removes a pending event. It returns false when the handle is
// unknown, already cancelled or belongs to a one-shot event in the running
// bucket, which executes regardless. Cancelling a repeating event while its
// bucket is running prevents its re-enrolment.
func (s *Scheduler) Cancel(h EventHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.pending[h]
	if !ok || ev.canceled {
		return false
	}
	if ev.index >= 0 {
		heap.Remove(&s.queue, ev.index)
		s.forget(ev)
		return true
	}
	if !ev.staged && !ev.Repeating() {
		return false
	}
	// in-flight repeating or staged: dropped when the bucket finishes
	ev.canceled = true
	return true
}

// Step executes the next time bucket against state. It returns false when
// no event is pending.
func (s *Scheduler) Step(state State) bool {
	s.mu.Lock()
	next := s.queue.Peek()
	if next == nil {
		s.mu.Unlock()
		return false
	}
	t := next.Time
	s.currentTime = t
	tick := s.stepCount
	s.stepCount++
	s.running = true

	// Heap pops arrive in (time, priority, seq) order, so the bucket is
	// already in its deterministic execution order.
	bucket := make([]*ScheduledEvent, 0, 8)
	for len(s.queue) > 0 && s.queue[0].Time == t {
		bucket = append(bucket, heap.Pop(&s.queue).(*ScheduledEvent))
	}
	s.mu.Unlock()

	logrus.Debugf("[t=%012.3f] tick %d: executing %d events", t, tick, len(bucket))

	if s.trace.Enabled() {
		for _, ev := range bucket {
			s.trace.RecordExecution(trace.ExecutionRecord{
				Rep:      s.rep,
				Step:     tick,
				Time:     t,
				Priority: ev.Priority,
				AgentID:  uint64(ev.Agent.ID()),
				Seq:      ev.seq,
			})
		}
	}

	if s.workers > 1 {
		s.runParallel(bucket, state)
	} else {
		for _, ev := range bucket {
			runHooks(ev.Agent, state)
		}
	}

	s.settle(bucket, state, t)

	s.collector.ObserveTick(len(bucket), t, s.EventCount())
	return true
}

// runParallel executes the bucket on up to s.workers goroutines. Events are
// partitioned by agent so that one agent never runs concurrently with itself.
func (s *Scheduler) runParallel(bucket []*ScheduledEvent, state State) {
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, group := range partitionByAgent(bucket) {
		group := group // per-iteration copy (go1.21 loop semantics)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &AgentPanic{Agent: group[0].Agent.ID(), Value: r}
				}
			}()
			for _, ev := range group {
				runHooks(ev.Agent, state)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
}

// settle applies stop conditions and re-enrols repeating events.
func (s *Scheduler) settle(bucket []*ScheduledEvent, state State, t float64) {
	stopped := make(map[AgentID]bool, len(bucket))
	order := make([]AgentID, 0, len(bucket))
	for _, ev := range bucket {
		id := ev.Agent.ID()
		if _, seen := stopped[id]; seen {
			continue
		}
		stopped[id] = isStopped(ev.Agent, state)
		order = append(order, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.flushStaged()
	for _, id := range order {
		if stopped[id] {
			s.purgeAgent(id)
		}
	}
	for _, ev := range bucket {
		if stopped[ev.Agent.ID()] || ev.canceled || !ev.Repeating() {
			s.forget(ev)
			continue
		}
		ev.Time = t + ev.Interval
		heap.Push(&s.queue, ev)
	}
}

// purgeAgent drops every queued enrolment of agent id. Must hold s.mu.
func (s *Scheduler) purgeAgent(id AgentID) {
	for _, ev := range s.byAgent[id] {
		if ev.index >= 0 {
			heap.Remove(&s.queue, ev.index)
			s.forget(ev)
		}
	}
}

// forget removes ev from the handle indexes. Must hold s.mu.
func (s *Scheduler) forget(ev *ScheduledEvent) {
	h := ev.Handle()
	delete(s.pending, h)
	id := ev.Agent.ID()
	if events := s.byAgent[id]; events != nil {
		delete(events, h)
		if len(events) == 0 {
			delete(s.byAgent, id)
		}
	}
}

// CurrentTime returns the time of the most recently executed bucket.
func (s *Scheduler) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTime
}

// EventCount returns the number of queued events.
func (s *Scheduler) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// StepCount returns how many buckets have been executed.
func (s *Scheduler) StepCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stepCount
}

// AgentPanic wraps a panic raised by an agent on a worker goroutine. It is
// re-raised on the goroutine that called Step.
type AgentPanic struct {
	Agent AgentID
	Value any
}

func (p *AgentPanic) Error() string {
	return fmt.Sprintf("agent %d panicked: %v", p.Agent, p.Value)
}

func runHooks(a Agent, state State) {
	if b, ok := a.(BeforeStepper); ok {
		b.BeforeStep(state)
	}
	a.Step(state)
	if af, ok := a.(AfterStepper); ok {
		af.AfterStep(state)
	}
}

func isStopped(a Agent, state State) bool {
	if st, ok := a.(Stopper); ok {
		return st.IsStopped(state)
	}
	return false
}

// partitionByAgent groups a bucket by agent id, keeping first-appearance
// order between groups and bucket order within each group.
func partitionByAgent(bucket []*ScheduledEvent) [][]*ScheduledEvent {
	index := make(map[AgentID]int, len(bucket))
	groups := make([][]*ScheduledEvent, 0, len(bucket))
	for _, ev := range bucket {
		id := ev.Agent.ID()
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ev)
	}
	return groups
}
