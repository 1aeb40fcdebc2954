package sim

import (
	"sync"
	"sync/atomic"
)

// execution is one observed Step call.
type execution struct {
	agent AgentID
	time  float64
}

// recorder collects Step calls from any number of goroutines.
type recorder struct {
	mu    sync.Mutex
	calls []execution
}

func (r *recorder) record(a AgentID, t float64) {
	r.mu.Lock()
	r.calls = append(r.calls, execution{agent: a, time: t})
	r.mu.Unlock()
}

func (r *recorder) snapshot() []execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]execution(nil), r.calls...)
}

func (r *recorder) times(a AgentID) []float64 {
	var out []float64
	for _, c := range r.snapshot() {
		if c.agent == a {
			out = append(out, c.time)
		}
	}
	return out
}

func (r *recorder) agents() []AgentID {
	var out []AgentID
	for _, c := range r.snapshot() {
		out = append(out, c.agent)
	}
	return out
}

// recAgent records every Step. It stops once it has stepped stopAfter times
// (0 = never) and runs onStep, when set, inside Step.
type recAgent struct {
	id        AgentID
	rec       *recorder
	sched     *Scheduler
	stopAfter int64
	onStep    func(a *recAgent)

	steps    atomic.Int64
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newRecAgent(id AgentID, rec *recorder, sched *Scheduler) *recAgent {
	return &recAgent{id: id, rec: rec, sched: sched}
}

func (a *recAgent) ID() AgentID { return a.id }

func (a *recAgent) Step(State) {
	if a.inFlight.Add(1) > 1 {
		a.overlap.Store(true)
	}
	defer a.inFlight.Add(-1)
	a.steps.Add(1)
	a.rec.record(a.id, a.sched.CurrentTime())
	if a.onStep != nil {
		a.onStep(a)
	}
}

func (a *recAgent) IsStopped(State) bool {
	return a.stopAfter > 0 && a.steps.Load() >= a.stopAfter
}

// hookAgent records the order of its lifecycle hooks.
type hookAgent struct {
	id    AgentID
	calls []string
}

func (a *hookAgent) ID() AgentID          { return a.id }
func (a *hookAgent) BeforeStep(State)     { a.calls = append(a.calls, "before") }
func (a *hookAgent) Step(State)           { a.calls = append(a.calls, "step") }
func (a *hookAgent) AfterStep(State)      { a.calls = append(a.calls, "after") }
func (a *hookAgent) IsStopped(State) bool { return false }

// panicAgent panics when stepped.
type panicAgent struct{ id AgentID }

func (a *panicAgent) ID() AgentID { return a.id }
func (a *panicAgent) Step(State)  { panic("boom") }

// testState is a configurable State that also counts commits and updates.
type testState struct {
	init func(s *Scheduler) error
	end  func(s *Scheduler) bool

	commits int
	updates []uint64
	// commitsAtUpdate records how many commits had happened when Update ran.
	commitsAtUpdate []int
}

func (st *testState) Init(s *Scheduler) error {
	if st.init == nil {
		return nil
	}
	return st.init(s)
}

func (st *testState) EndCondition(s *Scheduler) bool {
	return st.end != nil && st.end(s)
}

func (st *testState) Commit() { st.commits++ }

func (st *testState) Update(step uint64) {
	st.updates = append(st.updates, step)
	st.commitsAtUpdate = append(st.commitsAtUpdate, st.commits)
}
