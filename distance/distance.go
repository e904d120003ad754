package distance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Euclidean returns sqrt(Σ (a[c]-b[c])²).
// Panics if the lengths differ.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// SquaredEuclidean returns Σ (a[c]-b[c])².
// Panics if the lengths differ.
func SquaredEuclidean(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// Manhattan returns Σ |a[c]-b[c]|.
// Panics if the lengths differ.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// Metric identifies a distance function.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricManhattan
	MetricSquaredEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "euclidean"
	case MetricManhattan:
		return "manhattan"
	case MetricSquaredEuclidean:
		return "sqeuclidean"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric maps a metric name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "euclidean", "l2":
		return MetricEuclidean, nil
	case "manhattan", "l1":
		return MetricManhattan, nil
	case "sqeuclidean":
		return MetricSquaredEuclidean, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", s)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricSquaredEuclidean:
		return SquaredEuclidean, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// FirstNonFinite returns the index of the first NaN or ±Inf component of v,
// or -1 if every component is finite.
func FirstNonFinite(v []float64) int {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i
		}
	}
	return -1
}
