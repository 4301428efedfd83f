package stream

import (
	"sync/atomic"

	"tablecast/internal/frame"
)

// Buffer is a frame handed to a sink. The sink reads Desc and must call
// Release once it no longer needs the pixels.
type Buffer struct {
	Desc  frame.Descriptor
	Seq   uint64
	frame *frame.Frame
	done  atomic.Bool
	onRel func()
}

// Frame exposes the underlying frame for sinks that hand it to gocv.
func (b *Buffer) Frame() *frame.Frame {
	return b.frame
}

// Release frees the storage. Calls after the first are no-ops.
func (b *Buffer) Release() {
	if !b.done.CompareAndSwap(false, true) {
		return
	}
	b.frame.Release()
	if b.onRel != nil {
		b.onRel()
	}
}

func (b *Buffer) Released() bool {
	return b.done.Load()
}
