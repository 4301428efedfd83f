// Package frame turns a native camera image into the corrected output
// image: perspective warp followed by optional background replacement.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"tablecast/internal/geometry"
	"tablecast/internal/logger"
	"tablecast/internal/opencv/memory"
	"tablecast/internal/plane"
)

const component = "FrameProcessor"

var ErrEmptyFrame = errors.New("empty input frame")

// DefaultBackground is the fill used for masked pixels.
var DefaultBackground = color.RGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}

type Options struct {
	Output      image.Point
	Background  color.RGBA
	MaskInvalid bool
}

// Params is the per-frame view of the session. Threshold is in point-cloud
// units.
type Params struct {
	Transform     geometry.Transform
	Plane         *plane.Plane
	FilterEnabled bool
	Threshold     float64
	Depth         plane.PointSource
}

// warpPerspective is replaced in tests to exercise failure paths.
var warpPerspective = gocv.WarpPerspectiveWithParams

func (p Params) filtering() bool {
	return p.FilterEnabled && p.Plane != nil && p.Depth != nil
}

// maskCache holds the last mask built, keyed on what changes it. The depth
// source is fixed for the life of a Processor.
type maskCache struct {
	plane     plane.Plane
	threshold float64
	size      image.Point
	data      []byte
	built     bool
}

func (c *maskCache) matches(p plane.Plane, threshold float64, size image.Point) bool {
	return c.built && c.plane == p && c.threshold == threshold && c.size == size
}

type Processor struct {
	opts Options
	pool *memory.Manager
	log  logger.Logger

	mu   sync.Mutex
	mask maskCache
}

func NewProcessor(opts Options, pool *memory.Manager, log logger.Logger) *Processor {
	if opts.Background == (color.RGBA{}) {
		opts.Background = DefaultBackground
	}
	return &Processor{opts: opts, pool: pool, log: log}
}

func (p *Processor) Output() image.Point {
	return p.opts.Output
}

// Process warps in into a pooled output frame. The caller owns the frame
// and must Release it.
func (p *Processor) Process(in gocv.Mat, params Params) (*Frame, error) {
	if in.Empty() {
		return nil, ErrEmptyFrame
	}
	format, err := FormatOf(in.Type())
	if err != nil {
		return nil, err
	}

	hm, err := transformMat(params.Transform)
	if err != nil {
		return nil, err
	}
	defer hm.Close()

	out, err := p.pool.Get(p.opts.Output.Y, p.opts.Output.X, in.Type())
	if err != nil {
		return nil, fmt.Errorf("output buffer: %w", err)
	}
	f := newFrame(out, format, p.pool)

	if err := warpPerspective(in, out.Ptr(), hm, p.opts.Output,
		gocv.InterpolationNearestNeighbor, gocv.BorderConstant, color.RGBA{}); err != nil {
		f.Release()
		return nil, fmt.Errorf("warp frame: %w", err)
	}

	if params.filtering() {
		if err := p.fill(f, in, hm, params); err != nil {
			p.log.Warning(component, "background fill skipped", map[string]interface{}{"error": err.Error()})
		}
	}
	return f, nil
}

func (p *Processor) fill(f *Frame, in gocv.Mat, hm gocv.Mat, params Params) error {
	native := image.Pt(in.Cols(), in.Rows())
	grid := params.Depth.Size()

	bytes := p.maskFor(params)
	if bytes == nil {
		return nil
	}
	mask, err := gocv.NewMatFromBytes(grid.Y, grid.X, gocv.MatTypeCV8UC1, bytes)
	if err != nil {
		return fmt.Errorf("mask: %w", err)
	}
	defer mask.Close()

	src := mask
	if grid != native {
		resized := gocv.NewMat()
		defer resized.Close()
		if err := gocv.Resize(mask, &resized, native, 0, 0, gocv.InterpolationNearestNeighbor); err != nil {
			return fmt.Errorf("resize mask: %w", err)
		}
		src = resized
	}

	warped := gocv.NewMat()
	defer warped.Close()
	if err := warpPerspective(src, &warped, hm, p.opts.Output,
		gocv.InterpolationNearestNeighbor, gocv.BorderConstant, color.RGBA{}); err != nil {
		return fmt.Errorf("warp mask: %w", err)
	}

	bg := p.opts.Background
	fill := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(bg.B), float64(bg.G), float64(bg.R), float64(bg.A)),
		p.opts.Output.Y, p.opts.Output.X, in.Type())
	defer fill.Close()

	if err := fill.CopyToWithMask(f.mat.Ptr(), warped); err != nil {
		return fmt.Errorf("fill background: %w", err)
	}
	return nil
}

// maskFor returns the mask for params, rebuilding it only when the plane,
// threshold or grid size has changed since the last call.
func (p *Processor) maskFor(params Params) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := params.Depth.Size()
	if p.mask.matches(*params.Plane, params.Threshold, size) {
		return p.mask.data
	}
	p.mask = maskCache{
		plane:     *params.Plane,
		threshold: params.Threshold,
		size:      size,
		data:      BuildMask(params.Depth, *params.Plane, params.Threshold, p.opts.MaskInvalid),
		built:     true,
	}
	p.log.Debug(component, "background mask rebuilt", map[string]interface{}{
		"threshold": params.Threshold,
		"grid":      fmt.Sprintf("%dx%d", size.X, size.Y),
	})
	return p.mask.data
}

// transformMat converts t to the 3x3 CV_64F matrix gocv expects.
func transformMat(t geometry.Transform) (gocv.Mat, error) {
	if !t.IsFinite() {
		return gocv.Mat{}, fmt.Errorf("transform has non-finite entries")
	}
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64FC1)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, t[r][c])
		}
	}
	return m, nil
}
