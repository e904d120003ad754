package pairstore

import (
	"fmt"

	"github.com/hupe1980/anneal/internal/resource"
)

// Pairs returns n*(n-1)/2, the number of unordered pairs over n rows.
func Pairs(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

// RowOffset returns the value that, added to j, gives the slot of the pair
// (i, j). Slots are laid out row-major: all pairs of row i come before those
// of row i+1, so RowOffset(i, n)+i+1 is the first slot of row i.
func RowOffset(i, n int) int {
	return i*n - i*(i+1)/2 - i - 1
}

// Index maps the pair (i, j) to its slot.
//
// Precondition: 0 <= i < j < n. The result is unspecified otherwise.
func Index(i, j, n int) int {
	return RowOffset(i, n) + j
}

// Store is an immutable packed pairwise distance matrix.
type Store struct {
	n    int
	data []float64

	rc       *resource.Controller
	reserved int64
}

// New wraps data as the store for n rows.
// len(data) must equal Pairs(n).
func New(n int, data []float64) (*Store, error) {
	if n < 0 {
		return nil, fmt.Errorf("pairstore: negative row count %d", n)
	}
	if len(data) != Pairs(n) {
		return nil, &SizeError{Rows: n, Expected: Pairs(n), Actual: len(data)}
	}
	return &Store{n: n, data: data}, nil
}

// SizeError reports a store whose length violates len == n*(n-1)/2.
type SizeError struct {
	Rows     int
	Expected int
	Actual   int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("pairstore: %d rows need %d slots, got %d", e.Rows, e.Expected, e.Actual)
}

// N returns the number of rows the store covers.
func (s *Store) N() int { return s.n }

// Len returns the number of stored pairs.
func (s *Store) Len() int { return len(s.data) }

// SizeBytes returns the memory held by the distance values.
func (s *Store) SizeBytes() int64 { return int64(len(s.data)) * 8 }

// At returns the distance between rows i and j in either order.
// Panics if i == j or either index is out of range.
func (s *Store) At(i, j int) float64 {
	if i > j {
		i, j = j, i
	}
	if i == j || i < 0 || j >= s.n {
		panic(fmt.Sprintf("pairstore: invalid pair (%d, %d) for %d rows", i, j, s.n))
	}
	return s.data[Index(i, j, s.n)]
}

// Values returns the packed slice. Callers must not modify it.
func (s *Store) Values() []float64 { return s.data }

// Close returns the memory reservation made by Build, if any.
func (s *Store) Close() {
	if s == nil || s.reserved == 0 {
		return
	}
	s.rc.ReleaseMemory(s.reserved)
	s.reserved = 0
}

// Charge reserves the store's memory against rc, for stores that were not
// built through Build (for example decoded from a snapshot). Close releases
// it. A store already holding a reservation is left unchanged.
func (s *Store) Charge(rc *resource.Controller) error {
	if rc == nil || s.reserved != 0 {
		return nil
	}
	size := s.SizeBytes()
	if err := rc.AcquireMemory(size); err != nil {
		return err
	}
	s.rc = rc
	s.reserved = size
	return nil
}
