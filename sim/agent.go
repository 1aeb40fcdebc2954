package sim

import "sync/atomic"

// AgentID uniquely identifies an agent within a run. IDs are never reused.
type AgentID uint64

// Agent is the minimal contract every scheduled entity implements.
// Step is invoked by the Scheduler once per due event; the State handle
// must not be retained after Step returns.
type Agent interface {
	ID() AgentID
	Step(state State)
}

// BeforeStepper is implemented by agents that need a hook before Step.
type BeforeStepper interface {
	BeforeStep(state State)
}

// AfterStepper is implemented by agents that need a hook after Step.
type AfterStepper interface {
	AfterStep(state State)
}

// Stopper is implemented by agents that can leave the schedule.
// IsStopped is queried once per agent after its bucket has run; agents
// that do not implement it never stop.
type Stopper interface {
	IsStopped(state State) bool
}

// State is the single source of truth of a simulation.
// Init seeds the initial events; EndCondition is checked by the Driver
// after every committed tick.
type State interface {
	Init(s *Scheduler) error
	EndCondition(s *Scheduler) bool
}

// Updater is implemented by states that want a per-tick hook. Update runs
// after the tick's commit, so it observes every write staged during the tick.
type Updater interface {
	Update(step uint64)
}

// Committer is implemented by every double-buffered structure (and by
// states that own them). Only the Driver calls Commit.
type Committer interface {
	Commit()
}

// StateFactory builds a fresh State for repetition rep.
type StateFactory func(rep int) (State, error)

// IDAllocator hands out AgentIDs. Safe for concurrent use, so agents may
// spawn new agents from inside a parallel bucket.
type IDAllocator struct {
	next atomic.Uint64
}

// NewIDAllocator returns an allocator whose first id is 0.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() AgentID {
	return AgentID(a.next.Add(1) - 1)
}

// Issued returns how many ids have been handed out.
func (a *IDAllocator) Issued() uint64 {
	return a.next.Load()
}

// CommitGroup commits a fixed set of structures in registration order.
// States typically embed one and register their fields during construction.
type CommitGroup struct {
	members []Committer
}

// Register appends structures to the group.
func (g *CommitGroup) Register(c ...Committer) {
	g.members = append(g.members, c...)
}

// Commit commits every registered structure.
func (g *CommitGroup) Commit() {
	for _, c := range g.members {
		c.Commit()
	}
}

// Len returns the number of registered structures.
func (g *CommitGroup) Len() int {
	return len(g.members)
}
