// Package testutil provides testing utilities for anneal.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random and clustered rows, writing
// them as delimited text, and scoring a clustering against known labels.
//
// # Random Row Generation
//
//	rng := testutil.NewRNG(seed)
//	rows := rng.UniformRows(100, 16)        // uniform [0, 1)
//	rows, labels := rng.ClusteredRows(100, 16, 4, 0.05)
//
// The RNG also satisfies the engine's random source (IntN, Float64).
//
// # Scoring
//
//	p := testutil.Purity(labels, assignment)
package testutil
