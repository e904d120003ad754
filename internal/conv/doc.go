// Package conv provides bounds-checked integer conversions.
//
// Row indices are stored as uint32 in cluster bitmaps and step counters are
// uint64; these helpers guard the boundaries where such values meet int.
package conv
