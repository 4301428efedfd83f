package frame

import (
	"tablecast/internal/plane"
)

const maskOn = 0xff

// BuildMask marks the grid pixels lying farther than threshold beyond p,
// away from the camera. With maskInvalid set, pixels without usable depth
// are marked too. The result is row-major, one byte per pixel.
func BuildMask(src plane.PointSource, p plane.Plane, threshold float64, maskInvalid bool) []byte {
	size := src.Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	mask := make([]byte, size.X*size.Y)
	for y := 0; y < size.Y; y++ {
		row := mask[y*size.X:]
		for x := 0; x < size.X; x++ {
			pt, ok := src.PointAt(x, y)
			if !ok || !plane.Valid(pt) {
				if maskInvalid {
					row[x] = maskOn
				}
				continue
			}
			if p.Distance(pt) > threshold {
				row[x] = maskOn
			}
		}
	}
	return mask
}
