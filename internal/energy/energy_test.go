package energy

import (
	"os"
	"testing"

	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/assign"
	"github.com/hupe1980/anneal/internal/pairstore"
	"github.com/hupe1980/anneal/internal/scale"
	"github.com/hupe1980/anneal/table"
	"github.com/hupe1980/anneal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, rows [][]float64) *pairstore.Store {
	t.Helper()
	s, err := pairstore.Build(t.Context(), rows, pairstore.BuildOptions{Workers: 2})
	require.NoError(t, err)
	return s
}

func bruteForce(rows [][]float64, members []uint32) float64 {
	var sum float64
	for x := range members {
		for y := x + 1; y < len(members); y++ {
			sum += distance.Euclidean(rows[members[x]], rows[members[y]])
		}
	}
	return sum
}

func TestEnergy_Small(t *testing.T) {
	rows := [][]float64{{0, 0}, {3, 4}, {0, 4}, {3, 0}}
	e := New(build(t, rows))

	assert.Equal(t, 0.0, e.Energy(nil))
	assert.Equal(t, 0.0, e.Energy([]uint32{2}))
	assert.InDelta(t, 5.0, e.Energy([]uint32{0, 1}), 1e-12)
	// Pairs of the last rows live in the tail slots of the store.
	assert.InDelta(t, 4.0, e.Energy([]uint32{1, 3}), 1e-12)
	assert.InDelta(t, 5.0, e.Energy([]uint32{2, 3}), 1e-12)
	// 3 + 5 + 5 + 3 + 4 + 4
	assert.InDelta(t, 24.0, e.Energy([]uint32{0, 1, 2, 3}), 1e-12)
}

func TestEnergy_MatchesBruteForce(t *testing.T) {
	rows := testutil.NewRNG(3).UniformRows(60, 8)
	e := New(build(t, rows))

	a, err := assign.Random(len(rows), 5, testutil.NewRNG(11))
	require.NoError(t, err)

	energies := e.All(a)
	require.Len(t, energies, 5)
	for c := range energies {
		assert.InDelta(t, bruteForce(rows, a.Members(c)), energies[c], 1e-9)
		assert.Equal(t, energies[c], e.Cluster(a, c))
	}
}

func TestEnergy_FixturePair(t *testing.T) {
	f, err := os.Open("../../testdata/yeast_cell_cycle.tsv")
	require.NoError(t, err)
	defer f.Close()

	tbl, err := table.Read(f, '\t')
	require.NoError(t, err)

	_, err = scale.MinMaxRows(tbl.Rows, scale.ZeroRangeZero)
	require.NoError(t, err)

	s := build(t, tbl.Rows)
	require.Equal(t, 256*255/2, s.Len())

	exp5 := []float64{0.6989, 0.0000, 0.0968, 0.3333, 0.4301, 1.0000, 0.7419, 0.7419, 0.6022, 0.7634, 0.1720, 0.4301, 0.5161, 0.7634, 0.6989, 0.6559}
	exp7 := []float64{0.0803, 0.0000, 0.2867, 0.5849, 0.9679, 1.0000, 0.7775, 0.7156, 0.5505, 0.5459, 0.4518, 0.6193, 0.8440, 0.8532, 0.9335, 0.7752}

	a, err := assign.FromSlice(clustersWithPair(256, 5, 7), 2)
	require.NoError(t, err)

	e := New(s)
	assert.InDelta(t, distance.Euclidean(exp5, exp7), e.Cluster(a, 1), 1e-3)
	assert.InDelta(t, s.At(5, 7), e.Cluster(a, 1), 1e-12)
}

// clustersWithPair puts rows i and j in cluster 1 and every other row in 0.
func clustersWithPair(n, i, j int) []int {
	out := make([]int, n)
	out[i], out[j] = 1, 1
	return out
}
