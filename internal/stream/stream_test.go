package stream

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"tablecast/internal/frame"
	"tablecast/internal/geometry"
	"tablecast/internal/logger"
	"tablecast/internal/opencv/memory"
)

type fixture struct {
	pool *memory.Manager
	proc *frame.Processor
	in   gocv.Mat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := memory.NewManager(4, 0, logger.Nop())
	in := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	t.Cleanup(func() {
		in.Close()
		pool.Cleanup()
	})
	return &fixture{
		pool: pool,
		proc: frame.NewProcessor(frame.Options{Output: image.Pt(2, 2)}, pool, logger.Nop()),
		in:   in,
	}
}

func (fx *fixture) frame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := fx.proc.Process(fx.in, frame.Params{Transform: geometry.Identity()})
	require.NoError(t, err)
	return f
}

type rejectSink struct{ err error }

func (s rejectSink) Consume(context.Context, *Buffer) error { return s.err }

type holdSink struct{ got []*Buffer }

func (s *holdSink) Consume(_ context.Context, b *Buffer) error {
	s.got = append(s.got, b)
	return nil
}

func TestPushDefersReleaseToSink(t *testing.T) {
	fx := newFixture(t)
	sink := &holdSink{}
	a := NewAdapter(sink, logger.Nop())

	f := fx.frame(t)
	require.NoError(t, a.Push(context.Background(), f))
	require.Len(t, sink.got, 1)

	b := sink.got[0]
	assert.False(t, f.Released())
	assert.Equal(t, 2, b.Desc.Width)
	assert.Equal(t, frame.FormatBGR, b.Desc.Format)
	assert.EqualValues(t, 1, b.Seq)

	b.Release()
	b.Release()
	assert.True(t, f.Released())
	assert.Equal(t, Stats{Pushed: 1, Released: 1}, a.Stats())
	assert.EqualValues(t, 0, fx.pool.Stats().ActiveMats)
}

func TestPushReleasesOnReject(t *testing.T) {
	fx := newFixture(t)
	boom := errors.New("boom")
	a := NewAdapter(rejectSink{err: boom}, logger.Nop())

	f := fx.frame(t)
	err := a.Push(context.Background(), f)
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.Released())
	assert.Equal(t, Stats{Released: 1, Rejected: 1}, a.Stats())
	assert.EqualValues(t, 1, a.StatsFields()["buffers_rejected"])
}

func TestChannelSinkDeliversInOrder(t *testing.T) {
	fx := newFixture(t)
	sink := NewChannelSink(2)
	defer sink.Close()
	a := NewAdapter(sink, logger.Nop())

	require.NoError(t, a.Push(context.Background(), fx.frame(t)))
	require.NoError(t, a.Push(context.Background(), fx.frame(t)))

	first := <-sink.Buffers()
	second := <-sink.Buffers()
	assert.EqualValues(t, 1, first.Seq)
	assert.EqualValues(t, 2, second.Seq)
	first.Release()
	second.Release()
}

func TestChannelSinkBlocksWhenFull(t *testing.T) {
	fx := newFixture(t)
	sink := NewChannelSink(1)
	defer sink.Close()
	a := NewAdapter(sink, logger.Nop())

	require.NoError(t, a.Push(context.Background(), fx.frame(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f := fx.frame(t)
	err := a.Push(ctx, f)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.Released())

	(<-sink.Buffers()).Release()
}

func TestChannelSinkCloseReleasesQueued(t *testing.T) {
	fx := newFixture(t)
	sink := NewChannelSink(2)
	a := NewAdapter(sink, logger.Nop())

	f := fx.frame(t)
	require.NoError(t, a.Push(context.Background(), f))
	require.NoError(t, sink.Close())
	assert.True(t, f.Released())

	err := a.Push(context.Background(), fx.frame(t))
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.NoError(t, sink.Close())
}
