package stream

import (
	"context"
	"sync"
)

// ChannelSink queues buffers for a consumer goroutine. Consume blocks while
// the queue is full.
type ChannelSink struct {
	buffers chan *Buffer
	closed  chan struct{}
	once    sync.Once
	mu      sync.RWMutex
}

func NewChannelSink(capacity int) *ChannelSink {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelSink{
		buffers: make(chan *Buffer, capacity),
		closed:  make(chan struct{}),
	}
}

func (s *ChannelSink) Consume(ctx context.Context, b *Buffer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}
	select {
	case s.buffers <- b:
		return nil
	case <-s.closed:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Buffers yields queued buffers. The receiver must Release each one.
func (s *ChannelSink) Buffers() <-chan *Buffer {
	return s.buffers
}

// Done is closed once Close has been called.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.closed
}

// Close makes further Consume calls fail and releases anything still
// queued.
func (s *ChannelSink) Close() error {
	s.once.Do(func() {
		close(s.closed)
		// Wait for in-flight Consume calls so nothing lands after the drain.
		s.mu.Lock()
		defer s.mu.Unlock()
		for {
			select {
			case b := <-s.buffers:
				b.Release()
			default:
				return
			}
		}
	})
	return nil
}
