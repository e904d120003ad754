package scale

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/floats"
)

// ZeroRangePolicy decides what happens to a row whose values are all equal.
type ZeroRangePolicy int

const (
	// ZeroRangeZero maps every value of a constant row to 0.
	ZeroRangeZero ZeroRangePolicy = iota
	// ZeroRangeReject fails with a *ZeroRangeError before any row is rescaled.
	ZeroRangeReject
	// ZeroRangePropagate divides by the zero range, yielding NaN values.
	ZeroRangePropagate
)

func (p ZeroRangePolicy) String() string {
	switch p {
	case ZeroRangeZero:
		return "zero"
	case ZeroRangeReject:
		return "reject"
	case ZeroRangePropagate:
		return "propagate"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseZeroRangePolicy parses "zero", "reject" or "propagate".
func ParseZeroRangePolicy(s string) (ZeroRangePolicy, error) {
	switch s {
	case "", "zero":
		return ZeroRangeZero, nil
	case "reject":
		return ZeroRangeReject, nil
	case "propagate":
		return ZeroRangePropagate, nil
	default:
		return 0, fmt.Errorf("invalid zero-range policy: %q (valid: zero, reject, propagate)", s)
	}
}

// ZeroRangeError reports a constant row under ZeroRangeReject.
type ZeroRangeError struct {
	Row   int
	Value float64
}

func (e *ZeroRangeError) Error() string {
	return fmt.Sprintf("row %d has zero range (all values %g)", e.Row, e.Value)
}

// MinMaxRows rescales each row in place to (v-min)/(max-min).
//
// The returned bitset marks rows with max == min; how those rows are
// written depends on policy. Empty rows are left untouched and marked.
func MinMaxRows(rows [][]float64, policy ZeroRangePolicy) (*bitset.BitSet, error) {
	degenerate := bitset.New(uint(len(rows)))

	for i, row := range rows {
		if len(row) == 0 || floats.Max(row) == floats.Min(row) {
			degenerate.Set(uint(i))
		}
	}

	if policy == ZeroRangeReject {
		if i, ok := degenerate.NextSet(0); ok {
			var v float64
			if len(rows[i]) > 0 {
				v = rows[i][0]
			}
			return degenerate, &ZeroRangeError{Row: int(i), Value: v}
		}
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if degenerate.Test(uint(i)) && policy == ZeroRangeZero {
			for c := range row {
				row[c] = 0
			}
			continue
		}
		Row(row)
	}

	return degenerate, nil
}

// Row rescales a single row in place and returns its original min and range.
// A zero range yields non-finite values; use MinMaxRows for policy handling.
func Row(row []float64) (lo, span float64) {
	if len(row) == 0 {
		return 0, 0
	}
	lo = floats.Min(row)
	span = floats.Max(row) - lo
	for c, v := range row {
		row[c] = (v - lo) / span
	}
	return lo, span
}
