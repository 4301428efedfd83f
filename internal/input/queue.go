package input

import "sync/atomic"

// Queue carries events from display or network goroutines to the driving
// loop. Publish never blocks; events are dropped once the buffer is full.
type Queue struct {
	events  chan Event
	dropped atomic.Int64
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 64
	}
	return &Queue{events: make(chan Event, size)}
}

func (q *Queue) Publish(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Drain hands the events pending at call time to fn in arrival order and
// returns how many were delivered. It does not wait for new events.
func (q *Queue) Drain(fn func(Event)) int {
	pending := len(q.events)
	for i := 0; i < pending; i++ {
		fn(<-q.events)
	}
	return pending
}

func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
