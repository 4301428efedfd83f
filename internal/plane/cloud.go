package plane

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
)

// PointSource gives access to the 3D point behind a native-resolution pixel.
// PointAt reports false when the pixel has no usable depth.
type PointSource interface {
	Size() image.Point
	PointAt(x, y int) (r3.Vector, bool)
}

// Valid reports whether pt can take part in a fit.
func Valid(pt r3.Vector) bool {
	return !math.IsNaN(pt.Z) && !math.IsInf(pt.Z, 0) && pt.Z > 0 &&
		!math.IsNaN(pt.X) && !math.IsInf(pt.X, 0) &&
		!math.IsNaN(pt.Y) && !math.IsInf(pt.Y, 0)
}

// Collect converts the whole grid to a point cloud. Rows are split into
// bands processed concurrently; the result keeps row-major order.
func Collect(ctx context.Context, src PointSource, workers int) ([]r3.Vector, error) {
	size := src.Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > size.Y {
		workers = size.Y
	}

	bands := make([][]r3.Vector, workers)
	rowsPer := (size.Y + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := min(y0+rowsPer, size.Y)
		if y0 >= y1 {
			continue
		}
		g.Go(func() error {
			band := make([]r3.Vector, 0, (y1-y0)*size.X/2)
			for y := y0; y < y1; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for x := 0; x < size.X; x++ {
					pt, ok := src.PointAt(x, y)
					if !ok || !Valid(pt) {
						continue
					}
					band = append(band, pt)
				}
			}
			bands[w] = band
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, b := range bands {
		total += len(b)
	}
	cloud := make([]r3.Vector, 0, total)
	for _, b := range bands {
		cloud = append(cloud, b...)
	}
	return cloud, nil
}
