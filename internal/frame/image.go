package frame

import (
	"fmt"
	"image"
)

// Image copies the described pixels into a Go image: GRAY8 becomes
// *image.Gray, BGR and BGRA become *image.RGBA.
func (d Descriptor) Image() (image.Image, error) {
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", d.Width, d.Height)
	}
	ch := d.Format.Channels()
	if ch == 0 {
		return nil, fmt.Errorf("unsupported format %v", d.Format)
	}
	if len(d.Data) < d.Width*d.Height*ch {
		return nil, fmt.Errorf("short pixel buffer: %d bytes for %dx%d %v", len(d.Data), d.Width, d.Height, d.Format)
	}

	rect := image.Rect(0, 0, d.Width, d.Height)
	if ch == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, d.Data[:d.Width*d.Height])
		return gray, nil
	}

	rgba := image.NewRGBA(rect)
	n := d.Width * d.Height
	for i := 0; i < n; i++ {
		src := d.Data[i*ch:]
		dst := rgba.Pix[i*4:]
		dst[0] = src[2]
		dst[1] = src[1]
		dst[2] = src[0]
		if ch == 4 {
			dst[3] = src[3]
		} else {
			dst[3] = 0xff
		}
	}
	return rgba, nil
}
