package assign

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/anneal/internal/conv"
)

// ErrInvalidK is returned when the number of clusters is not positive.
var ErrInvalidK = errors.New("assign: k must be positive")

// Source draws uniform integers in [0,n).
type Source interface {
	IntN(n int) int
}

// Assignment maps rows 0..n-1 to clusters 0..k-1.
type Assignment struct {
	clusters []int
	members  []*roaring.Bitmap
}

func newAssignment(n, k int) *Assignment {
	members := make([]*roaring.Bitmap, k)
	for c := range members {
		members[c] = roaring.New()
	}
	return &Assignment{
		clusters: make([]int, n),
		members:  members,
	}
}

// Random assigns every row to a cluster drawn uniformly from [0,k).
func Random(n, k int, rng Source) (*Assignment, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if _, err := conv.IntToUint32(n); err != nil {
		return nil, fmt.Errorf("assign: row count: %w", err)
	}

	a := newAssignment(n, k)
	for row := range a.clusters {
		c := rng.IntN(k)
		a.clusters[row] = c
		a.members[c].Add(uint32(row))
	}
	return a, nil
}

// FromSlice builds an assignment from explicit cluster ids.
// The slice is copied.
func FromSlice(clusters []int, k int) (*Assignment, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if _, err := conv.IntToUint32(len(clusters)); err != nil {
		return nil, fmt.Errorf("assign: row count: %w", err)
	}

	a := newAssignment(len(clusters), k)
	for row, c := range clusters {
		if c < 0 || c >= k {
			return nil, fmt.Errorf("assign: row %d has cluster %d outside [0,%d)", row, c, k)
		}
		a.clusters[row] = c
		a.members[c].Add(uint32(row))
	}
	return a, nil
}

// N returns the number of rows.
func (a *Assignment) N() int { return len(a.clusters) }

// K returns the number of clusters.
func (a *Assignment) K() int { return len(a.members) }

// Of returns the cluster of row.
func (a *Assignment) Of(row int) int { return a.clusters[row] }

// Move puts row into cluster to and returns the cluster it left.
func (a *Assignment) Move(row, to int) int {
	from := a.clusters[row]
	if from == to {
		return from
	}
	a.members[from].Remove(uint32(row))
	a.members[to].Add(uint32(row))
	a.clusters[row] = to
	return from
}

// Members returns the rows of cluster c in ascending order.
func (a *Assignment) Members(c int) []uint32 {
	return a.members[c].ToArray()
}

// Size returns the number of rows in cluster c.
func (a *Assignment) Size(c int) int {
	return int(a.members[c].GetCardinality())
}

// Sizes returns the size of every cluster.
func (a *Assignment) Sizes() []int {
	sizes := make([]int, len(a.members))
	for c := range a.members {
		sizes[c] = a.Size(c)
	}
	return sizes
}

// Slice returns a copy of the row-to-cluster mapping.
func (a *Assignment) Slice() []int {
	out := make([]int, len(a.clusters))
	copy(out, a.clusters)
	return out
}
