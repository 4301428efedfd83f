// Package depth turns a registered depth grid into 3D points.
package depth

import (
	"errors"
	"fmt"
	"image"

	"github.com/golang/geo/r3"
	"gocv.io/x/gocv"
)

// Intrinsics are pinhole parameters of the depth camera in pixels.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// DefaultIntrinsics approximates a Kinect v2 depth camera scaled to a grid of
// the given size.
func DefaultIntrinsics(size image.Point) Intrinsics {
	sx := float64(size.X) / 512
	sy := float64(size.Y) / 424
	return Intrinsics{Fx: 365.5 * sx, Fy: 365.5 * sy, Cx: 256 * sx, Cy: 212 * sy}
}

type Options struct {
	// Scale converts raw samples to point-cloud units (millimetres by default).
	Scale float64
	// Min and Max bound the usable range, in point-cloud units.
	Min, Max   float64
	Intrinsics Intrinsics
}

// Map is a depth grid registered to the colour stream. It implements
// plane.PointSource.
type Map struct {
	width, height int
	data          []uint16
	opts          Options
}

func NewMap(width, height int, data []uint16, opts Options) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid depth size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("depth data has %d samples, want %d", len(data), width*height)
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Intrinsics.Fx == 0 || opts.Intrinsics.Fy == 0 {
		opts.Intrinsics = DefaultIntrinsics(image.Pt(width, height))
	}
	return &Map{width: width, height: height, data: data, opts: opts}, nil
}

// Load reads a single-channel 16-bit image (PNG or TIFF) as a depth grid.
func Load(path string, opts Options) (*Map, error) {
	img := gocv.IMRead(path, gocv.IMReadAnyDepth)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("cannot read depth image %q", path)
	}
	return FromMat(img, opts)
}

func FromMat(img gocv.Mat, opts Options) (*Map, error) {
	if img.Type() != gocv.MatTypeCV16UC1 {
		return nil, errors.New("depth image must be 16-bit single channel")
	}
	samples, err := img.DataPtrUint16()
	if err != nil {
		return nil, fmt.Errorf("read depth samples: %w", err)
	}
	data := make([]uint16, len(samples))
	copy(data, samples)
	return NewMap(img.Cols(), img.Rows(), data, opts)
}

func (m *Map) Size() image.Point {
	return image.Pt(m.width, m.height)
}

// Depth returns the scaled depth at (x, y), or false if it is missing or out
// of range.
func (m *Map) Depth(x, y int) (float64, bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return 0, false
	}
	raw := m.data[y*m.width+x]
	if raw == 0 {
		return 0, false
	}
	z := float64(raw) * m.opts.Scale
	if m.opts.Min > 0 && z < m.opts.Min {
		return 0, false
	}
	if m.opts.Max > 0 && z > m.opts.Max {
		return 0, false
	}
	return z, true
}

func (m *Map) PointAt(x, y int) (r3.Vector, bool) {
	z, ok := m.Depth(x, y)
	if !ok {
		return r3.Vector{}, false
	}
	in := m.opts.Intrinsics
	return r3.Vector{
		X: (float64(x) - in.Cx) * z / in.Fx,
		Y: (float64(y) - in.Cy) * z / in.Fy,
		Z: z,
	}, true
}
