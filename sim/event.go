package sim

import "fmt"

// EventHandle identifies a scheduled event. It stays valid across
// re-enrolments of repeating events.
type EventHandle uint64

// ScheduledEvent is one enrolment of an agent in the timeline.
// Owned by the Scheduler; callers only ever see its handle.
type ScheduledEvent struct {
	Agent    Agent
	Time     float64 // simulated time of the next execution
	Priority int     // lower executes first among equal times
	Interval float64 // 0 for one-shot events
	handle   EventHandle
	seq      uint64 // enrolment order, deterministic tie-breaker
	index    int    // position in the heap, -1 when not queued
	staged   bool   // enrolled during a running bucket, not yet queued
	canceled bool
}

// Handle returns the handle the event was enrolled with.
func (e *ScheduledEvent) Handle() EventHandle {
	return e.handle
}

// Repeating reports whether the event re-enrols after execution.
func (e *ScheduledEvent) Repeating() bool {
	return e.Interval > 0
}

func (e *ScheduledEvent) String() string {
	return fmt.Sprintf("event#%d{agent=%d t=%.3f prio=%d every=%.3f}",
		e.seq, e.Agent.ID(), e.Time, e.Priority, e.Interval)
}

// before orders events by time → priority → insertion sequence.
func (e *ScheduledEvent) before(o *ScheduledEvent) bool {
	if e.Time != o.Time {
		return e.Time < o.Time
	}
	if e.Priority != o.Priority {
		return e.Priority < o.Priority
	}
	return e.seq < o.seq
}

// EventQueue implements heap.Interface with deterministic ordering.
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-PriorityQueue
type EventQueue []*ScheduledEvent

func (eq EventQueue) Len() int           { return len(eq) }
func (eq EventQueue) Less(i, j int) bool { return eq[i].before(eq[j]) }
func (eq EventQueue) Swap(i, j int) {
	eq[i], eq[j] = eq[j], eq[i]
	eq[i].index = i
	eq[j].index = j
}

func (eq *EventQueue) Push(x any) {
	ev := x.(*ScheduledEvent)
	ev.index = len(*eq)
	*eq = append(*eq, ev)
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*eq = old[0 : n-1]
	return item
}

// Peek returns the next event without removing it.
func (eq EventQueue) Peek() *ScheduledEvent {
	if len(eq) == 0 {
		return nil
	}
	return eq[0]
}
