package plot

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/hupe1980/anneal/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "out/run_cluster_1.svg", FileName("out/run", 0))
	assert.Equal(t, "x_cluster_12.svg", FileName("x", 11))
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	rows := [][]float64{{0, 0.5, 1}, {1, 0.5, 0}, {math.NaN(), 0, 0}}

	require.NoError(t, WriteSVG(&buf, "Cluster 1 (3 rows)", rows))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "Cluster 1 (3 rows)")
}

func TestRender(t *testing.T) {
	store := blobstore.NewMemoryStore()
	data := [][]float64{{0, 1}, {1, 0}, {0.5, 0.5}}

	names, err := Render(t.Context(), store, "res", data, []int{0, 2, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"res_cluster_1.svg", "res_cluster_2.svg", "res_cluster_3.svg"}, names)

	listed, err := store.List(t.Context(), "res_cluster_")
	require.NoError(t, err)
	assert.Equal(t, names, listed)

	svg, err := blobstore.ReadAll(t.Context(), store, "res_cluster_2.svg")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(svg), "Cluster 2 (0 rows)"), "empty clusters still get a chart")
}

func TestRender_Errors(t *testing.T) {
	store := blobstore.NewMemoryStore()

	_, err := Render(t.Context(), store, "p", [][]float64{{1}}, nil, 1)
	assert.Error(t, err)

	_, err = Render(t.Context(), store, "p", [][]float64{{1}}, []int{3}, 2)
	assert.Error(t, err)
}
