// Package geometry holds the planar perspective transform used to map native
// sensor pixels onto the fixed output raster.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned when a transform cannot be solved or inverted.
var ErrDegenerate = errors.New("geometry: degenerate transform")

// Transform is a 3x3 homography, indices are [row][column]. It maps native
// pixel coordinates to output pixel coordinates.
type Transform [3][3]float64

func Identity() Transform {
	return Transform{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Scale returns the default transform that stretches the native raster onto
// the output raster without any perspective correction.
func Scale(native, output image.Point) Transform {
	return Transform{
		{float64(output.X) / float64(native.X), 0, 0},
		{0, float64(output.Y) / float64(native.Y), 0},
		{0, 0, 1},
	}
}

// Apply maps pt through the transform. The second result is false when the
// point maps to infinity.
func (t Transform) Apply(pt r2.Point) (r2.Point, bool) {
	x := t[0][0]*pt.X + t[0][1]*pt.Y + t[0][2]
	y := t[1][0]*pt.X + t[1][1]*pt.Y + t[1][2]
	w := t[2][0]*pt.X + t[2][1]*pt.Y + t[2][2]
	if w == 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: x / w, Y: y / w}, true
}

func (t Transform) Dense() *mat.Dense {
	return mat.NewDense(3, 3, t.Values())
}

// Values returns the matrix in row-major order.
func (t Transform) Values() []float64 {
	out := make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		out = append(out, t[r][:]...)
	}
	return out
}

func FromValues(v []float64) (Transform, error) {
	if len(v) != 9 {
		return Transform{}, fmt.Errorf("transform needs 9 values, got %d", len(v))
	}
	var t Transform
	for i, x := range v {
		t[i/3][i%3] = x
	}
	return t, nil
}

func (t Transform) IsFinite() bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.IsNaN(t[r][c]) || math.IsInf(t[r][c], 0) {
				return false
			}
		}
	}
	return true
}

func (t Transform) Inverse() (Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.Dense()); err != nil {
		return Transform{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	var out Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r][c] = inv.At(r, c)
		}
	}
	if !out.IsFinite() {
		return Transform{}, ErrDegenerate
	}
	return out, nil
}

// ApproxEqual compares element-wise within eps.
func (t Transform) ApproxEqual(o Transform, eps float64) bool {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if math.Abs(t[r][c]-o[r][c]) > eps {
				return false
			}
		}
	}
	return true
}
