// Package engine runs the single-threaded capture, correct and push loop.
package engine

import (
	"context"
	"errors"
	"maps"
	"runtime"
	"time"

	"gocv.io/x/gocv"

	"tablecast/internal/frame"
	"tablecast/internal/input"
	"tablecast/internal/logger"
	"tablecast/internal/plane"
	"tablecast/internal/session"
	"tablecast/internal/stream"
	"tablecast/internal/timing"
)

const (
	component = "Engine"

	DefaultStatsEvery = 300
	DefaultIdleBackoff = 5 * time.Millisecond
	DefaultMaxIdle     = 250 * time.Millisecond
)

// Source fills dst with the next native frame. It reports false when no
// frame was available.
type Source interface {
	Read(dst *gocv.Mat) bool
}

type Processor interface {
	Process(in gocv.Mat, p frame.Params) (*frame.Frame, error)
}

type Pusher interface {
	Push(ctx context.Context, f *frame.Frame) error
}

// Reporter contributes counters to the periodic stats line.
type Reporter interface {
	StatsFields() map[string]interface{}
}

// Deps are the collaborators the loop drives. Depth may be nil, in which
// case plane requests are ignored.
type Deps struct {
	State     *session.State
	Events    *input.Queue
	Router    *input.Router
	Source    Source
	Depth     plane.PointSource
	Estimator *plane.Estimator
	Processor Processor
	Output    Pusher
	Tracker   *timing.Tracker
	Reporters []Reporter
	Log       logger.Logger
}

type Options struct {
	// DistanceScale converts the interactive threshold to point-cloud units.
	DistanceScale float64
	Workers       int
	// StatsEvery is the number of pushed frames between timing log lines.
	StatsEvery int
	// IdleBackoff is the wait after the first read that yields no frame. It
	// grows linearly with consecutive misses up to MaxIdle.
	IdleBackoff time.Duration
	MaxIdle     time.Duration
}

type Engine struct {
	Deps
	opts   Options
	img    gocv.Mat
	frames uint64
	misses int
}

func New(deps Deps, opts Options) *Engine {
	if opts.DistanceScale <= 0 {
		opts.DistanceScale = 1
	}
	if opts.StatsEvery <= 0 {
		opts.StatsEvery = DefaultStatsEvery
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = DefaultIdleBackoff
	}
	if opts.MaxIdle < opts.IdleBackoff {
		opts.MaxIdle = max(DefaultMaxIdle, opts.IdleBackoff)
	}
	if deps.Tracker == nil {
		deps.Tracker = timing.NewTracker()
	}
	if deps.Estimator == nil {
		deps.Estimator = plane.NewEstimator(plane.DefaultIterations, nil)
	}
	return &Engine{Deps: deps, opts: opts, img: gocv.NewMat()}
}

// Run steps until quit is requested, the sink closes or ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	e.Log.Info(component, "loop started", nil)
	defer func() {
		e.Log.Info(component, "loop stopped", e.counters())
	}()

	for {
		more, err := e.Step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !more {
			return nil
		}
	}
}

// Step runs one iteration. Pending events are applied before the frame is
// read so that they affect it. It returns false once the loop should stop.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.Events.Drain(func(ev input.Event) { e.Router.Dispatch(e.State, ev) })
	if e.State.Flags.QuitRequested {
		e.Log.Info(component, "quit requested", nil)
		return false, nil
	}

	stop := e.Tracker.Start("capture")
	ok := e.Source.Read(&e.img)
	stop()

	if e.State.Flags.FindPlaneRequested {
		e.findPlane(ctx)
	}

	if !ok || e.img.Empty() {
		return true, e.idle(ctx)
	}
	if e.misses > 0 {
		e.Log.Info(component, "source resumed", map[string]interface{}{"missed": e.misses})
		e.misses = 0
	}

	stop = e.Tracker.Start("process")
	f, err := e.Processor.Process(e.img, e.params())
	stop()
	if err != nil {
		if !errors.Is(err, frame.ErrEmptyFrame) {
			e.Log.Warning(component, "frame dropped", map[string]interface{}{"error": err.Error()})
		}
		runtime.Gosched()
		return true, nil
	}

	stop = e.Tracker.Start("push")
	err = e.Output.Push(ctx, f)
	stop()
	switch {
	case errors.Is(err, stream.ErrSinkClosed):
		e.Log.Info(component, "sink closed", nil)
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case err != nil:
		e.Log.Warning(component, "push failed", map[string]interface{}{"error": err.Error()})
	}

	e.frames++
	if e.frames%uint64(e.opts.StatsEvery) == 0 {
		fields := e.counters()
		maps.Copy(fields, e.Tracker.Fields())
		e.Log.Info(component, "loop stats", fields)
		e.Tracker.Reset()
	}

	runtime.Gosched()
	return true, nil
}

// idle waits after a read that produced no frame, such as at the end of a
// video file or while a camera is unplugged. Only the first miss is logged.
func (e *Engine) idle(ctx context.Context) error {
	e.misses++
	if e.misses == 1 {
		e.Log.Warning(component, "source returned no frame", nil)
	}

	wait := min(time.Duration(e.misses)*e.opts.IdleBackoff, e.opts.MaxIdle)
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// counters gathers the frame count, dropped input events and every
// reporter's fields.
func (e *Engine) counters() map[string]interface{} {
	fields := map[string]interface{}{
		"frames":         e.frames,
		"events_dropped": e.Events.Dropped(),
	}
	for _, r := range e.Reporters {
		maps.Copy(fields, r.StatsFields())
	}
	return fields
}

func (e *Engine) params() frame.Params {
	return frame.Params{
		Transform:     e.State.Transform,
		Plane:         e.State.Plane,
		FilterEnabled: e.State.Flags.FilterEnabled,
		Threshold:     e.threshold(),
		Depth:         e.Depth,
	}
}

func (e *Engine) threshold() float64 {
	return e.State.Flags.DistanceThreshold * e.opts.DistanceScale
}

// findPlane services a pending request. A failed fit keeps the previous
// plane.
func (e *Engine) findPlane(ctx context.Context) {
	e.State.Flags.FindPlaneRequested = false
	if e.Depth == nil {
		e.Log.Warning(component, "plane requested without a depth source", nil)
		return
	}

	defer e.Tracker.Start("plane")()

	points, err := plane.Collect(ctx, e.Depth, e.opts.Workers)
	if err != nil {
		e.Log.Warning(component, "point cloud collection failed", map[string]interface{}{"error": err.Error()})
		return
	}
	res, err := e.Estimator.Estimate(points, e.threshold())
	if err != nil {
		e.Log.Warning(component, "plane estimation failed", map[string]interface{}{
			"error":  err.Error(),
			"points": len(points),
		})
		return
	}

	p := res.Plane
	e.State.Plane = &p
	e.Log.Info(component, "plane estimated", map[string]interface{}{
		"normal":  []float64{p.Normal.X, p.Normal.Y, p.Normal.Z},
		"offset":  p.Offset,
		"inliers": res.Inliers,
		"points":  res.Points,
	})
}

func (e *Engine) Close() error {
	return e.img.Close()
}
