package sim

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventQueue_Ordering(t *testing.T) {
	rec := &recorder{}
	a := newRecAgent(1, rec, nil)
	q := make(EventQueue, 0)
	events := []*ScheduledEvent{
		{Agent: a, Time: 2, Priority: 0, seq: 0},
		{Agent: a, Time: 1, Priority: 5, seq: 1},
		{Agent: a, Time: 1, Priority: 1, seq: 3},
		{Agent: a, Time: 1, Priority: 1, seq: 2},
	}
	for _, ev := range events {
		heap.Push(&q, ev)
	}
	assert.Same(t, events[3], q.Peek())

	var got []uint64
	for q.Len() > 0 {
		ev := heap.Pop(&q).(*ScheduledEvent)
		assert.Equal(t, -1, ev.index)
		got = append(got, ev.seq)
	}
	assert.Equal(t, []uint64{2, 3, 1, 0}, got)
	assert.Nil(t, q.Peek())
}

func TestScheduledEvent_Repeating(t *testing.T) {
	assert.False(t, (&ScheduledEvent{}).Repeating())
	assert.True(t, (&ScheduledEvent{Interval: 0.5}).Repeating())
}
