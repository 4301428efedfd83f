package plane

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInsufficientPoints is returned when fewer than three points are given.
	ErrInsufficientPoints = errors.New("plane: need at least 3 points")
	// ErrNoConsensus is returned when no candidate plane collected any inlier.
	ErrNoConsensus = errors.New("plane: no candidate reached consensus")
)

// DefaultIterations matches the live pipeline's budget per estimate.
const DefaultIterations = 200

// Sampler draws indices in [0, n). *rand.Rand satisfies it.
type Sampler interface {
	IntN(n int) int
}

// Estimator runs RANSAC plane fitting.
type Estimator struct {
	MaxIterations int
	// Refine enables a least-squares refit over the best inlier set.
	Refine  bool
	Sampler Sampler
}

// Result is the winning model and its support.
type Result struct {
	Plane   Plane
	Inliers int
	Points  int
}

func NewEstimator(iterations int, sampler Sampler) *Estimator {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if sampler == nil {
		sampler = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Estimator{MaxIterations: iterations, Refine: true, Sampler: sampler}
}

// Estimate returns the plane with the largest inlier count among
// MaxIterations random 3-point candidates. Points are expected to be
// pre-filtered (finite, positive depth).
func (e *Estimator) Estimate(points []r3.Vector, threshold float64) (Result, error) {
	n := len(points)
	if n < 3 {
		return Result{}, ErrInsufficientPoints
	}

	var (
		best      Plane
		bestCount int
	)
	for i := 0; i < e.MaxIterations; i++ {
		a, b, c := e.Sampler.IntN(n), e.Sampler.IntN(n), e.Sampler.IntN(n)
		if a == b || b == c || a == c {
			continue
		}
		candidate, ok := Through(points[a], points[b], points[c])
		if !ok {
			continue
		}
		if count := countInliers(points, candidate, threshold); count > bestCount {
			best, bestCount = candidate, count
		}
	}
	if bestCount == 0 {
		return Result{}, ErrNoConsensus
	}

	if e.Refine {
		if refined, ok := refit(points, best, threshold); ok {
			if count := countInliers(points, refined, threshold); count >= bestCount {
				best, bestCount = refined, count
			}
		}
	}

	return Result{Plane: best.Normalized(), Inliers: bestCount, Points: n}, nil
}

func countInliers(points []r3.Vector, p Plane, threshold float64) int {
	count := 0
	for _, pt := range points {
		if math.Abs(p.Distance(pt)) <= threshold {
			count++
		}
	}
	return count
}

// refit is a total least squares fit: the normal is the eigenvector of the
// inlier covariance with the smallest eigenvalue.
func refit(points []r3.Vector, p Plane, threshold float64) (Plane, bool) {
	var (
		centroid r3.Vector
		inliers  []r3.Vector
	)
	for _, pt := range points {
		if math.Abs(p.Distance(pt)) <= threshold {
			inliers = append(inliers, pt)
			centroid = centroid.Add(pt)
		}
	}
	if len(inliers) < 3 {
		return Plane{}, false
	}
	centroid = centroid.Mul(1 / float64(len(inliers)))

	var xx, xy, xz, yy, yz, zz float64
	for _, pt := range inliers {
		d := pt.Sub(centroid)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	cov := mat.NewSymDense(3, []float64{
		xx, xy, xz,
		xy, yy, yz,
		xz, yz, zz,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Plane{}, false
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues are in ascending order.
	n := r3.Vector{X: vectors.At(0, 0), Y: vectors.At(1, 0), Z: vectors.At(2, 0)}
	norm := n.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return Plane{}, false
	}
	n = n.Mul(1 / norm)
	return Plane{Normal: n, Offset: n.Dot(centroid)}.Normalized(), true
}
