// Package capture provides the native colour frames fed to the loop.
package capture

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// Source yields native frames at a fixed size.
type Source interface {
	Read(dst *gocv.Mat) bool
	Size() image.Point
	Close() error
}

// Open picks a source for device: a camera index ("0"), a still image
// file, or anything else gocv.OpenVideoCapture understands (video files,
// stream URLs, pipelines).
func Open(device string, width, height int) (Source, error) {
	switch strings.ToLower(filepath.Ext(device)) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return OpenStill(device)
	}
	return OpenCamera(device, width, height)
}

type Camera struct {
	vc   *gocv.VideoCapture
	size image.Point
}

// OpenCamera opens the device and requests width x height. The size the
// device actually delivers is what Size reports.
func OpenCamera(device string, width, height int) (*Camera, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}
	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("open capture device %q: %w", device, err)
	}
	if width > 0 && height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	size := image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))
	if size.X <= 0 || size.Y <= 0 {
		vc.Close()
		return nil, fmt.Errorf("capture device %q reports no frame size", device)
	}
	return &Camera{vc: vc, size: size}, nil
}

func (c *Camera) Read(dst *gocv.Mat) bool {
	return c.vc.Read(dst)
}

func (c *Camera) Size() image.Point {
	return c.size
}

func (c *Camera) Close() error {
	return c.vc.Close()
}

// Still replays one image on every Read.
type Still struct {
	img gocv.Mat
}

func OpenStill(path string) (*Still, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("read still image %s", path)
	}
	return &Still{img: img}, nil
}

// Read copies the image into dst. A failed copy reports no frame.
func (s *Still) Read(dst *gocv.Mat) bool {
	if err := s.img.CopyTo(dst); err != nil {
		return false
	}
	return !dst.Empty()
}

func (s *Still) Size() image.Point {
	return image.Pt(s.img.Cols(), s.img.Rows())
}

func (s *Still) Close() error {
	return s.img.Close()
}
