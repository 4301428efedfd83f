package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"strings"
	"sync/atomic"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/mattn/go-isatty"

	"tablecast/internal/calibration"
	"tablecast/internal/capture"
	"tablecast/internal/config"
	"tablecast/internal/depth"
	"tablecast/internal/display"
	"tablecast/internal/engine"
	"tablecast/internal/frame"
	"tablecast/internal/input"
	"tablecast/internal/logger"
	"tablecast/internal/opencv/memory"
	"tablecast/internal/plane"
	"tablecast/internal/session"
	"tablecast/internal/shutdown"
	"tablecast/internal/stream"
	"tablecast/internal/timing"
	"tablecast/internal/web"
)

const component = "Application"

// Application owns every long-lived component and the order they stop in.
type Application struct {
	cfg       *config.Config
	log       logger.Logger
	logCloser io.Closer

	source   capture.Source
	pool     *memory.Manager
	sink     *stream.ChannelSink
	events   *input.Queue
	engine   *engine.Engine
	shutdown *shutdown.Manager

	loopDone chan struct{}
}

func NewApplication(cfg *config.Config) (*Application, error) {
	configureRuntime()

	log, closer, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    isatty.IsTerminal(os.Stderr.Fd()),
	})
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:       cfg,
		log:       log,
		logCloser: closer,
		shutdown:  shutdown.NewManager(log, shutdown.DefaultTimeout),
		loopDone:  make(chan struct{}),
	}
	if err := a.build(); err != nil {
		a.shutdown.Shutdown()
		closer.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build() error {
	cfg := a.cfg
	output := image.Pt(cfg.Output.Width, cfg.Output.Height)

	a.shutdown.Register("log", shutdown.Func(func() { a.logCloser.Close() }))

	src, err := capture.Open(cfg.Capture.Device, cfg.Capture.Width, cfg.Capture.Height)
	if err != nil {
		return err
	}
	a.source = src
	native := src.Size()

	a.pool = memory.NewManager(cfg.Sink.Queue+2, 0, a.log)
	a.shutdown.Register("mat pool", shutdown.Func(a.pool.Cleanup))
	a.shutdown.Register("capture", shutdown.Func(func() { a.source.Close() }))

	var grid plane.PointSource
	if cfg.Depth.File != "" {
		m, err := depth.Load(cfg.Depth.File, depth.Options{
			Scale: cfg.Depth.Scale,
			Min:   cfg.Depth.Min,
			Max:   cfg.Depth.Max,
			Intrinsics: depth.Intrinsics{
				Fx: cfg.Depth.Fx, Fy: cfg.Depth.Fy,
				Cx: cfg.Depth.Cx, Cy: cfg.Depth.Cy,
			},
		})
		if err != nil {
			return err
		}
		grid = m
	}

	store := calibration.NewFileStore(cfg.Calibration.File, cfg.Calibration.Key)
	calib := calibration.NewController(native, output, store, a.log)
	loaded := calib.Load()
	state := session.New(loaded.Transform, cfg.Filter.Enabled, cfg.Plane.InitialDistance)

	var sampler plane.Sampler
	if cfg.Plane.Seed != 0 {
		sampler = rand.New(rand.NewPCG(cfg.Plane.Seed, cfg.Plane.Seed))
	}
	estimator := plane.NewEstimator(cfg.Plane.MaxIterations, sampler)
	estimator.Refine = cfg.Plane.Refine

	bg := cfg.Filter.Background
	proc := frame.NewProcessor(frame.Options{
		Output:      output,
		Background:  color.RGBA{R: bg[0], G: bg[1], B: bg[2], A: 0xff},
		MaskInvalid: cfg.Filter.MaskInvalid,
	}, a.pool, a.log)

	a.events = input.NewQueue(0)
	a.sink = stream.NewChannelSink(cfg.Sink.Queue)
	adapter := stream.NewAdapter(a.sink, a.log)

	// Stage timings are collected at debug level only.
	tracker := timing.NewTracker()
	tracker.SetEnabled(strings.EqualFold(cfg.Log.Level, "debug"))

	a.engine = engine.New(engine.Deps{
		State:     state,
		Events:    a.events,
		Router:    input.NewRouter(calib, cfg.Plane.DistanceStep, a.log),
		Source:    src,
		Depth:     grid,
		Estimator: estimator,
		Processor: proc,
		Output:    adapter,
		Tracker:   tracker,
		Reporters: []engine.Reporter{adapter, a.pool},
		Log:       a.log,
	}, engine.Options{
		DistanceScale: cfg.Plane.DistanceScale,
		Workers:       cfg.Plane.Workers,
	})
	a.shutdown.Register("engine", shutdown.Func(func() {
		<-a.loopDone
		a.engine.Close()
	}))
	a.shutdown.Register("sink", shutdown.Func(func() { a.sink.Close() }))

	a.log.Info(component, "pipeline ready", map[string]interface{}{
		"native":      fmt.Sprintf("%dx%d", native.X, native.Y),
		"output":      fmt.Sprintf("%dx%d", output.X, output.Y),
		"transform":   loaded.Source.String(),
		"depth":       cfg.Depth.File != "",
		"sink":        cfg.Sink.Kind,
		"filter":      cfg.Filter.Enabled,
		"go_version":  runtime.Version(),
		"gomaxprocs":  runtime.GOMAXPROCS(0),
		"app_version": AppVersion,
	})
	return nil
}

// Run blocks until the loop ends, then stops everything.
func (a *Application) Run() error {
	a.shutdown.Listen()
	defer a.shutdown.Shutdown()

	ctx := a.shutdown.Context()
	switch a.cfg.Sink.Kind {
	case "web":
		return a.runWeb(ctx)
	default:
		return a.runWindow(ctx)
	}
}

func (a *Application) runLoop(ctx context.Context) error {
	defer close(a.loopDone)
	return a.engine.Run(ctx)
}

func (a *Application) runWeb(ctx context.Context) error {
	server := web.NewServer(web.Options{
		Listen:      a.cfg.Sink.Listen,
		Output:      image.Pt(a.cfg.Output.Width, a.cfg.Output.Height),
		JPEGQuality: a.cfg.Sink.JPEGQuality,
	}, a.events, a.sink, a.log)

	serveErr := make(chan error, 1)
	go func() {
		err := server.Run(ctx)
		if err != nil {
			a.log.Error(component, err, nil)
			// Without a viewer the loop has nowhere to push.
			a.sink.Close()
		}
		serveErr <- err
	}()

	if err := a.runLoop(ctx); err != nil {
		return err
	}
	a.sink.Close()
	return <-serveErr
}

// runWindow keeps the fyne event loop on the main goroutine and drives the
// pipeline from another.
func (a *Application) runWindow(ctx context.Context) error {
	fa := fyneapp.NewWithID(AppID)
	win := display.NewWindow(fa, AppName, image.Pt(a.cfg.Output.Width, a.cfg.Output.Height), a.events, a.sink, a.log)

	var uiRunning atomic.Bool
	a.shutdown.Register("window", shutdown.Func(func() {
		if uiRunning.Load() {
			fyne.Do(fa.Quit)
		}
	}))

	go win.Run(ctx)

	uiRunning.Store(true)
	loopErr := make(chan error, 1)
	go func() {
		err := a.runLoop(ctx)
		if uiRunning.Load() {
			fyne.Do(fa.Quit)
		}
		loopErr <- err
	}()

	win.Window().ShowAndRun()
	uiRunning.Store(false)

	// The UI may have gone first; make sure the loop sees it.
	a.events.Publish(input.Key("q"))
	a.sink.Close()
	return <-loopErr
}

func configureRuntime() {
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}
}
