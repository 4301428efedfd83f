package frame

import (
	"fmt"
	"image"
	"sync/atomic"

	"gocv.io/x/gocv"

	"tablecast/internal/opencv/memory"
	"tablecast/internal/opencv/safe"
)

// Format tags the pixel layout of a frame's bytes.
type Format int

const (
	FormatGray8 Format = iota + 1
	FormatBGR
	FormatBGRA
)

func (f Format) String() string {
	switch f {
	case FormatGray8:
		return "GRAY8"
	case FormatBGR:
		return "BGR"
	case FormatBGRA:
		return "BGRA"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Channels is the number of bytes per pixel.
func (f Format) Channels() int {
	switch f {
	case FormatGray8:
		return 1
	case FormatBGR:
		return 3
	case FormatBGRA:
		return 4
	default:
		return 0
	}
}

// FormatOf maps an 8-bit mat type to its format.
func FormatOf(t gocv.MatType) (Format, error) {
	switch t {
	case gocv.MatTypeCV8UC1:
		return FormatGray8, nil
	case gocv.MatTypeCV8UC3:
		return FormatBGR, nil
	case gocv.MatTypeCV8UC4:
		return FormatBGRA, nil
	default:
		return 0, fmt.Errorf("unsupported mat type %d", int(t))
	}
}

// Descriptor describes a frame's pixels without owning them. Data is only
// valid until the owning frame is released.
type Descriptor struct {
	Width  int
	Height int
	Format Format
	Size   int
	Data   []byte
}

// Frame is one corrected output image. Its storage goes back to the pool
// on the first Release.
type Frame struct {
	mat      *safe.Mat
	format   Format
	pool     *memory.Manager
	released atomic.Bool
}

func newFrame(m *safe.Mat, format Format, pool *memory.Manager) *Frame {
	return &Frame{mat: m, format: format, pool: pool}
}

func (f *Frame) Format() Format {
	return f.format
}

func (f *Frame) Size() image.Point {
	return image.Pt(f.mat.Cols(), f.mat.Rows())
}

// Mat exposes the pixels to gocv. It must not be used after Release.
func (f *Frame) Mat() gocv.Mat {
	return f.mat.Mat()
}

func (f *Frame) Descriptor() (Descriptor, error) {
	if f.Released() {
		return Descriptor{}, fmt.Errorf("frame already released")
	}
	data, err := f.mat.Bytes()
	if err != nil {
		return Descriptor{}, fmt.Errorf("frame pixels: %w", err)
	}
	return Descriptor{
		Width:  f.mat.Cols(),
		Height: f.mat.Rows(),
		Format: f.format,
		Size:   len(data),
		Data:   data,
	}, nil
}

// Release returns the storage and reports whether this call did it.
func (f *Frame) Release() bool {
	if !f.released.CompareAndSwap(false, true) {
		return false
	}
	if f.pool != nil {
		f.pool.Put(f.mat)
	} else {
		f.mat.Close()
	}
	return true
}

func (f *Frame) Released() bool {
	return f.released.Load()
}
