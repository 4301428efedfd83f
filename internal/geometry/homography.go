package geometry

import (
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

// OutputCorners returns the output rectangle corners in calibration order:
// top-left, top-right, bottom-right, bottom-left.
func OutputCorners(output image.Point) [4]r2.Point {
	w, h := float64(output.X), float64(output.Y)
	return [4]r2.Point{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h},
		{X: 0, Y: h},
	}
}

// SolveQuad computes the homography mapping src[i] onto dst[i] exactly. With
// h22 fixed to 1 the four correspondences give an 8x8 linear system.
func SolveQuad(src, dst [4]r2.Point) (Transform, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i

		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)

		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Transform{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	t := Transform{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}
	if !t.IsFinite() {
		return Transform{}, ErrDegenerate
	}
	return t, nil
}
