// Package distance provides the row-to-row distance functions used to build
// the pairwise distance store.
//
// Rows are dense []float64 profiles of equal width. All functions assume
// len(a) == len(b); the table loader guarantees this for every row it
// returns.
//
// # Usage
//
//	d := distance.Euclidean(a, b)
//	fn, err := distance.Provider(distance.MetricSquaredEuclidean)
package distance
