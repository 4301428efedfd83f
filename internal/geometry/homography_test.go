package geometry

import (
	"image"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveQuadIdentity(t *testing.T) {
	corners := OutputCorners(image.Pt(1280, 720))

	tr, err := SolveQuad(corners, corners)
	require.NoError(t, err)
	assert.True(t, tr.ApproxEqual(Identity(), 1e-9), "got %v", tr)
}

func TestSolveQuadMapsEachCorner(t *testing.T) {
	quads := map[string][4]r2.Point{
		"keystone": {
			{X: 100, Y: 50}, {X: 1100, Y: 80}, {X: 1240, Y: 700}, {X: 30, Y: 650},
		},
		"rotated": {
			{X: 300, Y: 10}, {X: 900, Y: 200}, {X: 700, Y: 650}, {X: 120, Y: 420},
		},
		"small": {
			{X: 10, Y: 10}, {X: 20, Y: 11}, {X: 21, Y: 19}, {X: 9, Y: 22},
		},
	}
	dst := OutputCorners(image.Pt(1280, 720))

	for name, src := range quads {
		t.Run(name, func(t *testing.T) {
			tr, err := SolveQuad(src, dst)
			require.NoError(t, err)
			for i := range src {
				got, ok := tr.Apply(src[i])
				require.True(t, ok)
				assert.InDelta(t, dst[i].X, got.X, 1e-6)
				assert.InDelta(t, dst[i].Y, got.Y, 1e-6)
			}
		})
	}
}

func TestSolveQuadDegenerate(t *testing.T) {
	collinear := [4]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	_, err := SolveQuad(collinear, OutputCorners(image.Pt(1280, 720)))
	assert.ErrorIs(t, err, ErrDegenerate)
}
