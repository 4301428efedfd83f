package shutdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tablecast/internal/logger"
)

func TestShutdownReverseOrderOnce(t *testing.T) {
	m := NewManager(logger.Nop(), time.Second)
	var order []string
	m.Register("capture", Func(func() { order = append(order, "capture") }))
	m.Register("sink", Func(func() { order = append(order, "sink") }))

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"sink", "capture"}, order)
	assert.Error(t, m.Context().Err())
	select {
	case <-m.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestShutdownTimesOutStuckComponent(t *testing.T) {
	m := NewManager(logger.Nop(), 10*time.Millisecond)
	block := make(chan struct{})
	defer close(block)
	stopped := false
	m.Register("fast", Func(func() { stopped = true }))
	m.Register("stuck", Func(func() { <-block }))

	start := time.Now()
	m.Shutdown()
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, stopped)
}
