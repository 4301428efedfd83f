package plane

import (
	"context"
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridSource returns a fixed value per pixel; missing entries are invalid.
type gridSource struct {
	w, h int
	pts  map[image.Point]r3.Vector
}

func (g *gridSource) Size() image.Point { return image.Pt(g.w, g.h) }

func (g *gridSource) PointAt(x, y int) (r3.Vector, bool) {
	pt, ok := g.pts[image.Pt(x, y)]
	return pt, ok
}

func TestCollectExcludesInvalidDepth(t *testing.T) {
	src := &gridSource{w: 4, h: 3, pts: map[image.Point]r3.Vector{
		{0, 0}: {X: 0, Y: 0, Z: 1},
		{1, 0}: {X: 1, Y: 0, Z: math.NaN()},
		{2, 0}: {X: 2, Y: 0, Z: math.Inf(1)},
		{3, 0}: {X: 3, Y: 0, Z: math.Inf(-1)},
		{0, 1}: {X: 0, Y: 1, Z: 0},
		{1, 1}: {X: 1, Y: 1, Z: -2},
		{2, 1}: {X: 2, Y: 1, Z: 3},
		{0, 2}: {X: math.NaN(), Y: 2, Z: 4},
		{3, 2}: {X: 3, Y: 2, Z: 5},
	}}

	for _, workers := range []int{0, 1, 2, 3, 8} {
		cloud, err := Collect(context.Background(), src, workers)
		require.NoError(t, err)
		assert.Equal(t, []r3.Vector{
			{X: 0, Y: 0, Z: 1},
			{X: 2, Y: 1, Z: 3},
			{X: 3, Y: 2, Z: 5},
		}, cloud, "workers=%d", workers)
		for _, pt := range cloud {
			assert.True(t, Valid(pt))
		}
	}
}

func TestCollectEmptyGrid(t *testing.T) {
	cloud, err := Collect(context.Background(), &gridSource{}, 4)
	require.NoError(t, err)
	assert.Empty(t, cloud)
}

func TestCollectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, &gridSource{w: 2, h: 2}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectFeedsEstimate(t *testing.T) {
	pts := map[image.Point]r3.Vector{}
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			pts[image.Pt(x, y)] = r3.Vector{X: float64(x), Y: float64(y) * 1.5, Z: 5}
		}
	}
	cloud, err := Collect(context.Background(), &gridSource{w: 10, h: 10, pts: pts}, 3)
	require.NoError(t, err)
	require.Len(t, cloud, 100)

	res, err := NewEstimator(100, seeded()).Estimate(cloud, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 5, res.Plane.Offset, 1e-9)
	assert.Equal(t, 100, res.Inliers)
}
