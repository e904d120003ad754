// Package scale rescales table rows to the unit interval.
//
// Scaling is per row: every profile is mapped onto [0,1] using its own
// minimum and maximum, so profiles with different amplitudes become
// comparable by shape. Columns are never scaled against each other.
package scale
