// Package stream hands corrected frames to a display or network sink with
// deferred, exactly-once release of their storage.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"tablecast/internal/frame"
	"tablecast/internal/logger"
)

const component = "StreamAdapter"

var ErrSinkClosed = errors.New("sink closed")

// Sink consumes buffers. Consume may block to apply backpressure. Once it
// returns nil the sink owns the buffer and must Release it.
type Sink interface {
	Consume(ctx context.Context, b *Buffer) error
}

type Stats struct {
	Pushed   uint64
	Released uint64
	Rejected uint64
}

type Adapter struct {
	sink Sink
	log  logger.Logger

	seq      atomic.Uint64
	pushed   atomic.Uint64
	released atomic.Uint64
	rejected atomic.Uint64
}

func NewAdapter(sink Sink, log logger.Logger) *Adapter {
	return &Adapter{sink: sink, log: log}
}

// Push transfers ownership of f to the sink. On error the frame has
// already been released.
func (a *Adapter) Push(ctx context.Context, f *frame.Frame) error {
	desc, err := f.Descriptor()
	if err != nil {
		f.Release()
		return err
	}
	b := &Buffer{
		Desc:  desc,
		Seq:   a.seq.Add(1),
		frame: f,
		onRel: func() { a.released.Add(1) },
	}

	if err := a.sink.Consume(ctx, b); err != nil {
		a.rejected.Add(1)
		b.Release()
		if !errors.Is(err, ErrSinkClosed) && !errors.Is(err, context.Canceled) {
			a.log.Warning(component, "sink rejected buffer", map[string]interface{}{
				"seq": b.Seq, "error": err.Error(),
			})
		}
		return fmt.Errorf("push buffer %d: %w", b.Seq, err)
	}
	a.pushed.Add(1)
	return nil
}

func (a *Adapter) Stats() Stats {
	return Stats{
		Pushed:   a.pushed.Load(),
		Released: a.released.Load(),
		Rejected: a.rejected.Load(),
	}
}

func (a *Adapter) StatsFields() map[string]interface{} {
	st := a.Stats()
	return map[string]interface{}{
		"buffers_pushed":   st.Pushed,
		"buffers_released": st.Released,
		"buffers_rejected": st.Rejected,
	}
}
