// Package assign holds the row-to-cluster mapping of an annealing run.
//
// Each row belongs to exactly one cluster at all times. Alongside the dense
// slice the package keeps one roaring bitmap per cluster so member lists can
// be produced in ascending order without scanning every row.
package assign
