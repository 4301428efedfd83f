// Package calibration turns four clicked screen points into the perspective
// transform that maps the native sensor raster onto the output raster.
package calibration

import (
	"fmt"
	"image"

	"github.com/golang/geo/r2"

	"tablecast/internal/geometry"
	"tablecast/internal/logger"
	"tablecast/internal/session"
)

const component = "Calibration"

// Source tells how the startup transform was obtained.
type Source int

const (
	Loaded Source = iota
	Defaulted
)

func (s Source) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "defaulted"
}

// LoadResult is the startup transform together with where it came from.
// Reason is set only for Defaulted.
type LoadResult struct {
	Transform geometry.Transform
	Source    Source
	Reason    error
}

// Outcome reports the buffer state after AddPoint.
type Outcome struct {
	Pending      int
	Recalibrated bool
}

// Controller accumulates calibration clicks. Points must be given in order
// top-left, top-right, bottom-right, bottom-left; the order is not checked
// and a different order yields a mirrored or skewed transform.
type Controller struct {
	native image.Point
	output image.Point
	store  Store
	log    logger.Logger

	points []r2.Point
}

func NewController(native, output image.Point, store Store, log logger.Logger) *Controller {
	return &Controller{
		native: native,
		output: output,
		store:  store,
		log:    log,
		points: make([]r2.Point, 0, 4),
	}
}

// Default is the plain resolution-scaling transform.
func (c *Controller) Default() geometry.Transform {
	return geometry.Scale(c.native, c.output)
}

// Load reads the persisted transform and falls back to Default.
func (c *Controller) Load() LoadResult {
	if c.store == nil {
		return LoadResult{Transform: c.Default(), Source: Defaulted, Reason: fmt.Errorf("no transform store configured")}
	}
	t, err := c.store.Load()
	if err != nil {
		c.log.Info(component, "using default transform", map[string]interface{}{
			"reason": err.Error(),
		})
		return LoadResult{Transform: c.Default(), Source: Defaulted, Reason: err}
	}
	c.log.Info(component, "loaded persisted transform", nil)
	return LoadResult{Transform: t, Source: Loaded}
}

// Pending is the number of buffered points (0-3 between calls).
func (c *Controller) Pending() int {
	return len(c.points)
}

func (c *Controller) Reset(st *session.State) {
	c.points = c.points[:0]
	st.Transform = c.Default()
	c.log.Info(component, "calibration reset", nil)
}

// AddPoint buffers a point given in output pixel coordinates. The fourth point
// solves the new transform, persists and adopts it. A persistence failure is
// returned but the transform stays active. A degenerate quadrilateral leaves
// the transform unchanged.
func (c *Controller) AddPoint(st *session.State, x, y float64) (Outcome, error) {
	// Clicks arrive in output space; the transform maps native space.
	c.points = append(c.points, r2.Point{
		X: float64(c.native.X) * x / float64(c.output.X),
		Y: float64(c.native.Y) * y / float64(c.output.Y),
	})
	c.log.Debug(component, "calibration point added", map[string]interface{}{
		"x": x, "y": y, "pending": len(c.points),
	})
	if len(c.points) < 4 {
		return Outcome{Pending: len(c.points)}, nil
	}

	src := [4]r2.Point{c.points[0], c.points[1], c.points[2], c.points[3]}
	c.points = c.points[:0]

	t, err := geometry.SolveQuad(src, geometry.OutputCorners(c.output))
	if err != nil {
		c.log.Warning(component, "calibration points are degenerate", map[string]interface{}{
			"error": err.Error(),
		})
		return Outcome{}, err
	}
	st.Transform = t
	c.log.Info(component, "transform recalibrated", map[string]interface{}{
		"matrix": t.Values(),
	})

	if c.store != nil {
		if err := c.store.Save(t); err != nil {
			c.log.Warning(component, "failed to persist transform", map[string]interface{}{
				"error": err.Error(),
			})
			return Outcome{Recalibrated: true}, fmt.Errorf("persist transform: %w", err)
		}
	}
	return Outcome{Recalibrated: true}, nil
}
