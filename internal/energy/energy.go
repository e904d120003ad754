// Package energy computes intra-cluster energies from a pair store.
//
// The energy of a cluster is the sum of distances over every unordered pair
// of its members. Empty and singleton clusters have zero energy.
package energy

import (
	"github.com/hupe1980/anneal/internal/assign"
	"github.com/hupe1980/anneal/internal/pairstore"
)

// Evaluator reads pair distances from an immutable store.
type Evaluator struct {
	store *pairstore.Store
}

// New returns an evaluator over store.
func New(store *pairstore.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Energy sums the distances of every pair in members.
// members must be in ascending order, as assign.Assignment.Members returns it.
func (e *Evaluator) Energy(members []uint32) float64 {
	n := e.store.N()
	data := e.store.Values()

	var sum float64
	for x := 0; x < len(members); x++ {
		i := int(members[x])
		base := pairstore.RowOffset(i, n)
		for _, m := range members[x+1:] {
			sum += data[base+int(m)]
		}
	}
	return sum
}

// Cluster returns the energy of cluster c under a.
func (e *Evaluator) Cluster(a *assign.Assignment, c int) float64 {
	return e.Energy(a.Members(c))
}

// All returns the energy of every cluster under a.
func (e *Evaluator) All(a *assign.Assignment) []float64 {
	out := make([]float64, a.K())
	for c := range out {
		out[c] = e.Cluster(a, c)
	}
	return out
}
