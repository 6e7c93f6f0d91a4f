// Package kmeans partitions dense vectors into a fixed number of groups.
//
// Centroids are seeded with K-Means++ from a caller-supplied seed, so the same
// input and seed always produce the same partition.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

const DefaultMaxIterations = 300

var (
	ErrInvalidK       = errors.New("kmeans: k must be positive")
	ErrTooFewPoints   = errors.New("kmeans: k exceeds the number of distinct points")
	ErrDimensionMatch = errors.New("kmeans: vectors have different dimensions")
)

type Config struct {
	K             int
	Seed          int64
	MaxIterations int
}

type Result struct {
	// Labels[i] is the group of the i-th input vector, in [0, K).
	Labels     []int
	Centroids  [][]float64
	Iterations int
}

func Fit(vectors [][]float32, cfg Config) (*Result, error) {
	if cfg.K <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, cfg.K)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}

	points, err := toFloat64(vectors)
	if err != nil {
		return nil, err
	}

	if distinct := countDistinct(points); cfg.K > distinct {
		return nil, fmt.Errorf("%w: k=%d, distinct points=%d", ErrTooFewPoints, cfg.K, distinct)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := initPlusPlus(points, cfg.K, rng)

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < cfg.MaxIterations {
		iter++

		changed := assign(points, centroids, labels)
		fillEmpty(points, centroids, labels)

		centroids = recompute(points, labels, len(centroids))
		if !changed {
			break
		}
	}

	return &Result{Labels: labels, Centroids: centroids, Iterations: iter}, nil
}

func toFloat64(vectors [][]float32) ([][]float64, error) {
	points := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMatch, i, len(v), len(vectors[0]))
		}
		p := make([]float64, len(v))
		for j, x := range v {
			p[j] = float64(x)
		}
		points[i] = p
	}
	return points, nil
}

func countDistinct(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		seen[fmt.Sprint(p)] = struct{}{}
	}
	return len(seen)
}

func initPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	distSq := make([]float64, len(points))
	for len(centroids) < k {
		var sum float64
		for i, p := range points {
			_, d := closest(p, centroids)
			distSq[i] = d
			sum += d
		}

		r := rng.Float64() * sum
		selected := -1
		var cumulative float64
		for i, d := range distSq {
			if d == 0 {
				continue
			}
			cumulative += d
			if cumulative >= r {
				selected = i
				break
			}
		}
		// floating point slack: take the last point not already a centroid
		if selected == -1 {
			for i := len(distSq) - 1; i >= 0; i-- {
				if distSq[i] > 0 {
					selected = i
					break
				}
			}
		}

		centroids = append(centroids, clone(points[selected]))
	}

	return centroids
}

func assign(points, centroids [][]float64, labels []int) bool {
	changed := false
	for i, p := range points {
		c, _ := closest(p, centroids)
		if labels[i] != c {
			labels[i] = c
			changed = true
		}
	}
	return changed
}

// fillEmpty moves the point farthest from its centroid into each empty group,
// so every run yields exactly k non-empty groups.
func fillEmpty(points, centroids [][]float64, labels []int) {
	for {
		sizes := make([]int, len(centroids))
		for _, l := range labels {
			sizes[l]++
		}

		empty := -1
		for c, n := range sizes {
			if n == 0 {
				empty = c
				break
			}
		}
		if empty == -1 {
			return
		}

		far, farDist := -1, -1.0
		for i, p := range points {
			if sizes[labels[i]] < 2 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far == -1 {
			return
		}

		labels[far] = empty
		centroids[empty] = clone(points[far])
	}
}

func recompute(points [][]float64, labels []int, k int) [][]float64 {
	dim := len(points[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, x := range p {
			sums[c][j] += x
		}
	}

	for c := range sums {
		if counts[c] == 0 {
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

func closest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
