package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueDrainPreservesOrder(t *testing.T) {
	q := NewQueue(8)
	q.Publish(Key("p"))
	q.Publish(Pointer(1, 2))
	q.Publish(Key("q"))

	var got []Event
	n := q.Drain(func(ev Event) { got = append(got, ev) })

	assert.Equal(t, 3, n)
	assert.Equal(t, []Event{Key("p"), Pointer(1, 2), Key("q")}, got)
	assert.Equal(t, 0, q.Drain(func(Event) { t.Fatal("queue should be empty") }))
}

func TestQueuePublishDropsWhenFull(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.Publish(Key("a")))
	assert.True(t, q.Publish(Key("b")))
	assert.False(t, q.Publish(Key("c")))
	assert.EqualValues(t, 1, q.Dropped())
}

func TestQueueDrainOnlyPendingAtCall(t *testing.T) {
	q := NewQueue(4)
	q.Publish(Key("a"))

	n := q.Drain(func(Event) { q.Publish(Key("late")) })
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Drain(func(Event) {}))
}
