// Package plane fits a dominant plane to a sparse point cloud.
package plane

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Plane is the set of points p with Normal·p = Offset. Normal has unit length
// and Offset is kept non-negative, which fixes the orientation so that Normal
// points away from the sensor origin.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// Through builds the plane containing three points. It reports false for
// collinear or coincident samples.
func Through(a, b, c r3.Vector) (Plane, bool) {
	cross := b.Sub(a).Cross(c.Sub(a))
	norm := cross.Norm()
	if norm < 1e-12 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Plane{}, false
	}
	n := cross.Mul(1 / norm)
	return Plane{Normal: n, Offset: n.Dot(a)}.Normalized(), true
}

// Distance is the signed perpendicular distance of p. Positive values lie on
// the far side of the plane as seen from the origin.
func (p Plane) Distance(pt r3.Vector) float64 {
	return p.Normal.Dot(pt) - p.Offset
}

// Normalized flips the plane so that Offset >= 0. The geometry is unchanged.
func (p Plane) Normalized() Plane {
	if p.Offset < 0 {
		return Plane{Normal: p.Normal.Mul(-1), Offset: -p.Offset}
	}
	return p
}

func (p Plane) String() string {
	return fmt.Sprintf("n=(%.4f %.4f %.4f) d=%.4f", p.Normal.X, p.Normal.Y, p.Normal.Z, p.Offset)
}
