package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/domain/service"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var _ service.Clusterer = (*KMeans)(nil)

// KMeansOptions configures FitKMeans.
type KMeansOptions struct {
	K       int
	Seed    int64
	NInit   int
	MaxIter int
	Tol     float64
}

// DefaultKMeansOptions returns 3 clusters, seed 42 and 10 restarts.
func DefaultKMeansOptions() KMeansOptions {
	return KMeansOptions{K: 3, Seed: 42, NInit: 10, MaxIter: 300, Tol: 1e-6}
}

// KMeans assigns points to the nearest of its centroids.
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

// FitKMeans runs Lloyd's algorithm from k-means++ seeds NInit times and keeps the
// run with the lowest inertia.
func FitKMeans(x *mat.Dense, opts KMeansOptions) (*KMeans, error) {
	r, _ := x.Dims()
	if opts.K <= 0 {
		return nil, errors.New("fit kmeans: k must be positive")
	}
	if r < opts.K {
		return nil, fmt.Errorf("fit kmeans: %d rows for %d clusters", r, opts.K)
	}
	nInit := max(opts.NInit, 1)
	rng := rand.New(rand.NewSource(opts.Seed))

	points := make([][]float64, r)
	for i := range points {
		points[i] = x.RawRowView(i)
	}

	var best *KMeans
	for run := 0; run < nInit; run++ {
		km := lloyd(points, seedPlusPlus(points, opts.K, rng), opts.MaxIter, opts.Tol)
		if best == nil || km.Inertia < best.Inertia {
			best = km
		}
	}
	return best, nil
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))

	d2 := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			_, d := nearest(centroids, p)
			d2[i] = d * d
		}
		total := floats.Sum(d2)
		next := rng.Intn(len(points))
		if total > 0 {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range d2 {
				acc += d
				if acc >= target {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), points[next]...))
	}
	return centroids
}

func lloyd(points [][]float64, centroids [][]float64, maxIter int, tol float64) *KMeans {
	k := len(centroids)
	dim := len(centroids[0])
	assign := make([]int, len(points))
	for it := 0; it < maxIter; it++ {
		for i, p := range points {
			assign[i], _ = nearest(centroids, p)
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			floats.Add(sums[assign[i]], p)
			counts[assign[i]]++
		}
		shift := 0.0
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its centroid
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			shift = math.Max(shift, floats.Distance(sums[c], centroids[c], 2))
			centroids[c] = sums[c]
		}
		if shift <= tol {
			break
		}
	}
	inertia := 0.0
	for _, p := range points {
		_, d := nearest(centroids, p)
		inertia += d * d
	}
	return &KMeans{Centroids: centroids, Inertia: inertia}
}

func nearest(centroids [][]float64, p []float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := floats.Distance(centroid, p, 2); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func (m *KMeans) Predict(x []float64) (int, error) {
	if len(m.Centroids) == 0 {
		return 0, errors.New("kmeans: no centroids")
	}
	if len(x) != len(m.Centroids[0]) {
		return 0, fmt.Errorf("%w: got %d dims, want %d", models.ErrInvalidInput, len(x), len(m.Centroids[0]))
	}
	c, _ := nearest(m.Centroids, x)
	return c, nil
}
