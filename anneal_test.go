package anneal

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/hupe1980/anneal/blobstore"
	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/pairstore"
	"github.com/hupe1980/anneal/table"
	"github.com/hupe1980/anneal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(rows [][]float64) *table.Table {
	return &table.Table{Names: testutil.Names(len(rows)), Rows: rows}
}

func smallConfig(k int) Config {
	return Config{K: k, Temperature: 2, Cooling: 0.99, MaxIterations: 500}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig(4)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"zero k", func(c *Config) { c.K = 0 }, "K"},
		{"negative temperature", func(c *Config) { c.Temperature = -1 }, "Temperature"},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }, "Temperature"},
		{"nan temperature", func(c *Config) { c.Temperature = math.NaN() }, "Temperature"},
		{"inf temperature", func(c *Config) { c.Temperature = math.Inf(1) }, "Temperature"},
		{"cooling one", func(c *Config) { c.Cooling = 1 }, "Cooling"},
		{"cooling zero", func(c *Config) { c.Cooling = 0 }, "Cooling"},
		{"nan cooling", func(c *Config) { c.Cooling = math.NaN() }, "Cooling"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "MaxIterations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mod(&cfg)

			var ce *ConfigError
			require.ErrorAs(t, cfg.Validate(), &ce)
			assert.Equal(t, tt.field, ce.Field)

			_, err := New(t.Context(), newTable([][]float64{{1, 2}}), cfg)
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestNew_InvalidTable(t *testing.T) {
	cfg := smallConfig(2)

	t.Run("nil", func(t *testing.T) {
		_, err := New(t.Context(), nil, cfg)
		assert.ErrorIs(t, err, ErrEmptyTable)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := New(t.Context(), &table.Table{}, cfg)
		assert.ErrorIs(t, err, ErrEmptyTable)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := New(t.Context(), newTable([][]float64{{1, 2, 3}, {1, 2}}), cfg)
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 1, dm.Row)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
	})

	t.Run("non finite", func(t *testing.T) {
		_, err := New(t.Context(), newTable([][]float64{{1, 2}, {math.Inf(-1), 2}}), cfg)
		assert.ErrorIs(t, err, ErrNonFiniteValue)
		var nf *NonFiniteError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, 1, nf.Row)
		assert.Equal(t, 0, nf.Column)
	})

	t.Run("names", func(t *testing.T) {
		_, err := New(t.Context(), &table.Table{Names: []string{"a"}, Rows: [][]float64{{1}, {2}}}, cfg)
		var ce *ConfigError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestNew_Normalizes(t *testing.T) {
	tbl := newTable([][]float64{
		{2, 4, 6},
		{-1, 0, 1},
		{3, 3, 3},
	})
	orig := tbl.Clone()

	c, err := New(t.Context(), tbl, smallConfig(2), WithSeed(1))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, orig, tbl, "input table must not be modified")
	assert.Equal(t, [][]float64{{0, 0.5, 1}, {0, 0.5, 1}, {0, 0, 0}}, c.Data())
	assert.Equal(t, []int{2}, c.Degenerate())
	assert.Equal(t, tbl.Names, c.Names())

	// Accessors return copies.
	c.Data()[0][0] = 42
	c.Names()[0] = "x"
	assert.Equal(t, 0.0, c.Data()[0][0])
	assert.Equal(t, "row0000", c.Names()[0])
}

func TestNew_ZeroRangeReject(t *testing.T) {
	tbl := newTable([][]float64{{1, 2}, {5, 5}})

	_, err := New(t.Context(), tbl, smallConfig(2), WithZeroRangePolicy(ZeroRangeReject))
	var zr *ZeroRangeError
	require.ErrorAs(t, err, &zr)
	assert.Equal(t, 1, zr.Row)
}

func TestNew_ZeroRangePropagate(t *testing.T) {
	tbl := newTable([][]float64{{1, 2}, {5, 5}, {0, 3}})

	c, err := New(t.Context(), tbl, smallConfig(2), WithZeroRangePolicy(ZeroRangePropagate), WithSeed(3))
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, math.IsNaN(c.Data()[1][0]))

	_, err = c.Run(t.Context())
	require.NoError(t, err)
}

func TestRun(t *testing.T) {
	rows := testutil.NewRNG(5).UniformRows(30, 8)

	c, err := New(t.Context(), newTable(rows), smallConfig(4), WithSeed(11), WithWorkers(3))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, uint64(500), res.Iterations)
	assert.Equal(t, res.Iterations, res.Accepted+res.Rejected)
	assert.Equal(t, uint64(11), res.Seed)
	assert.Len(t, res.Clusters, 30)
	assert.Len(t, res.Energies, 4)

	total := 0
	for _, n := range res.Sizes {
		total += n
	}
	assert.Equal(t, 30, total)
	for _, cl := range res.Clusters {
		assert.True(t, cl >= 0 && cl < 4)
	}

	var sum float64
	for _, e := range res.Energies {
		sum += e
	}
	assert.InDelta(t, sum/4, res.Energy, 1e-12)
	assert.InDelta(t, 2*math.Pow(0.99, 500), res.Temperature, 1e-12)
	require.NoError(t, c.eng.Verify())

	// Each cluster energy is the plain sum over its member pairs.
	data := c.Data()
	want := make([]float64, 4)
	for i := range data {
		for j := i + 1; j < len(data); j++ {
			if res.Clusters[i] == res.Clusters[j] {
				want[res.Clusters[i]] += distance.Euclidean(data[i], data[j])
			}
		}
	}
	assert.InDeltaSlice(t, want, res.Energies, 1e-9)
}

func TestRun_OnlyOnce(t *testing.T) {
	c, err := New(t.Context(), newTable([][]float64{{0, 1}, {1, 0}}), smallConfig(2))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Run(t.Context())
	require.NoError(t, err)

	_, err = c.Run(t.Context())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_AfterClose(t *testing.T) {
	c, err := New(t.Context(), newTable([][]float64{{0, 1}, {1, 0}}), smallConfig(2))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Run(t.Context())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRun_SingleCluster(t *testing.T) {
	rows := testutil.NewRNG(8).UniformRows(10, 3)

	c, err := New(t.Context(), newTable(rows), smallConfig(1), WithSeed(2))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), res.Accepted)
	assert.Equal(t, uint64(500), res.Rejected)
	assert.Equal(t, make([]int, 10), res.Clusters)
}

func TestRun_Reproducible(t *testing.T) {
	rows := testutil.NewRNG(13).UniformRows(40, 6)

	run := func(seed uint64) *Result {
		c, err := New(t.Context(), newTable(rows), smallConfig(4), WithSeed(seed))
		require.NoError(t, err)
		defer c.Close()
		res, err := c.Run(t.Context())
		require.NoError(t, err)
		return res
	}

	a, b := run(42), run(42)
	assert.Equal(t, a.Clusters, b.Clusters)
	assert.Equal(t, a.Energy, b.Energy)
	assert.Equal(t, a.Accepted, b.Accepted)
}

func TestRun_WithRand(t *testing.T) {
	rows := testutil.NewRNG(13).UniformRows(20, 4)

	run := func() []int {
		c, err := New(t.Context(), newTable(rows), smallConfig(3), WithRand(testutil.NewRNG(5)))
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, uint64(0), c.Seed())
		res, err := c.Run(t.Context())
		require.NoError(t, err)
		return res.Clusters
	}

	assert.Equal(t, run(), run())
}

func TestRun_FindsPlantedClusters(t *testing.T) {
	rows, labels := testutil.NewRNG(21).ClusteredRows(60, 12, 3, 0.02)
	cfg := Config{K: 3, Temperature: 5, Cooling: 0.999, MaxIterations: 20000}

	c, err := New(t.Context(), newTable(rows), cfg, WithSeed(23))
	require.NoError(t, err)
	defer c.Close()
	start := c.eng.Total()

	res, err := c.Run(t.Context())
	require.NoError(t, err)

	assert.Less(t, res.Energy, start)
	assert.GreaterOrEqual(t, testutil.Purity(labels, res.Clusters), 0.8)
}

func TestRun_Cancelled(t *testing.T) {
	rows := testutil.NewRNG(3).UniformRows(20, 4)

	c, err := New(t.Context(), newTable(rows), smallConfig(3), WithSeed(4))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, Interrupted(err))
	require.NotNil(t, res)
	assert.Equal(t, uint64(0), res.Iterations)
	assert.Len(t, res.Clusters, 20)
	assert.Equal(t, 2.0, res.Temperature)
}

func TestRun_CancelledMidway(t *testing.T) {
	rows := testutil.NewRNG(3).UniformRows(20, 4)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	obs := &cancelAfter{n: 100, cancel: cancel}
	cfg := smallConfig(3)
	cfg.MaxIterations = 10_000

	c, err := New(t.Context(), newTable(rows), cfg, WithSeed(4), WithMetricsObserver(obs))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(100), res.Iterations)
	require.NoError(t, c.eng.Verify())
}

type cancelAfter struct {
	NoopMetricsObserver
	n      int
	seen   int
	cancel context.CancelFunc
}

func (c *cancelAfter) OnStep(bool, float64, float64) {
	c.seen++
	if c.seen == c.n {
		c.cancel()
	}
}

func TestMetricsObserver(t *testing.T) {
	rows := testutil.NewRNG(9).UniformRows(15, 4)
	m := &BasicMetricsObserver{}

	c, err := New(t.Context(), newTable(rows), smallConfig(3), WithSeed(1), WithMetricsObserver(m))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Run(t.Context())
	require.NoError(t, err)

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.Builds)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(500), stats.Steps)
	assert.Equal(t, int64(res.Accepted), stats.Accepted)
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, res.Energy, stats.Energy)
	assert.Equal(t, res.Temperature, stats.Temperature)
}

func TestMemoryLimit(t *testing.T) {
	rows := testutil.NewRNG(9).UniformRows(100, 4)
	need := int64(pairstore.Pairs(100)) * 8

	_, err := New(t.Context(), newTable(rows), smallConfig(3), WithMemoryLimit(need-1))
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)

	c, err := New(t.Context(), newTable(rows), smallConfig(3), WithMemoryLimit(need))
	require.NoError(t, err)
	assert.Equal(t, need, c.MemoryUsage())
	require.NoError(t, c.Close())
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestDistanceCache(t *testing.T) {
	rows := testutil.NewRNG(17).UniformRows(25, 5)
	store := blobstore.NewMemoryStore()

	run := func(opts ...Option) (*Clusterer, *Result) {
		opts = append(opts, WithSeed(5), WithDistanceCache(store, CompressionZSTD))
		c, err := New(t.Context(), newTable(rows), smallConfig(3), opts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		res, err := c.Run(t.Context())
		require.NoError(t, err)
		return c, res
	}

	first, resFirst := run()
	assert.False(t, first.FromCache())

	names, err := store.List(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, CacheName(first.Data(), 0), names[0])

	m := &BasicMetricsObserver{}
	second, resSecond := run(WithMetricsObserver(m), WithMemoryLimit(1<<20))
	assert.True(t, second.FromCache())
	assert.Equal(t, int64(1), m.GetStats().CacheHits)
	assert.Equal(t, int64(pairstore.Pairs(25))*8, second.MemoryUsage())
	assert.Equal(t, resFirst.Clusters, resSecond.Clusters)
	assert.Equal(t, resFirst.Energy, resSecond.Energy)

	// A corrupt entry is rebuilt and replaced.
	require.NoError(t, store.Put(t.Context(), names[0], []byte("garbage")))
	third, resThird := run()
	assert.False(t, third.FromCache())
	assert.Equal(t, resFirst.Clusters, resThird.Clusters)

	fourth, _ := run()
	assert.True(t, fourth.FromCache())
}

func TestDistanceCache_MemoryLimit(t *testing.T) {
	rows := testutil.NewRNG(17).UniformRows(25, 5)
	store := blobstore.NewMemoryStore()

	c, err := New(t.Context(), newTable(rows), smallConfig(3), WithDistanceCache(store, CompressionLZ4))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = New(t.Context(), newTable(rows), smallConfig(3),
		WithDistanceCache(store, CompressionLZ4), WithMemoryLimit(64))
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
}

func TestWithMetric_SquaredEuclidean(t *testing.T) {
	rows := [][]float64{{0, 0, 0}, {1, 1, 1}, {0, 1, 0}, {1, 0, 1}}
	c, err := New(t.Context(), newTable(rows), smallConfig(2), WithSeed(3),
		WithMetric(distance.MetricSquaredEuclidean))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	data := c.Data()
	for i := range data {
		for j := i + 1; j < len(data); j++ {
			assert.InDelta(t, distance.SquaredEuclidean(data[i], data[j]), c.store.At(i, j), 1e-12)
		}
	}

	_, err = c.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.eng.Verify())
}

func TestCacheName(t *testing.T) {
	a := [][]float64{{0, 0.5, 1}, {1, 0, 0.25}}
	b := [][]float64{{0, 0.5, 1}, {1, 0, 0.5}}

	assert.Equal(t, CacheName(a, 0), CacheName(a, 0))
	assert.NotEqual(t, CacheName(a, 0), CacheName(b, 0))
	assert.NotEqual(t, CacheName(a, 0), CacheName(a, 1))
	assert.Regexp(t, `^distances-2-[0-9a-f]{32}\.apds$`, CacheName(a, 0))

	// Inputs that differ only in how values split across rows get distinct names.
	c := [][]float64{{0, 0.5}, {1, 1, 0, 0.25}}
	assert.NotEqual(t, CacheName(a, 0), CacheName(c, 0))
}

func TestFixture(t *testing.T) {
	f, err := os.Open("testdata/yeast_cell_cycle.tsv")
	require.NoError(t, err)
	defer f.Close()

	tbl, err := table.Read(f, '\t')
	require.NoError(t, err)

	cfg := Config{K: 8, Temperature: 20, Cooling: 0.9995, MaxIterations: 5000}
	c, err := New(t.Context(), tbl, cfg, WithSeed(2024))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "YFL086W", c.Names()[5])
	assert.Equal(t, 1.0, maxOf(c.Data()[5]))
	assert.Equal(t, 0.0, minOf(c.Data()[7]))

	res, err := c.Run(t.Context())
	require.NoError(t, err)
	require.NoError(t, c.eng.Verify())

	var buf bytes.Buffer
	require.NoError(t, res.WriteTSV(&buf, '\t'))
	assert.Equal(t, 257, bytes.Count(buf.Bytes(), []byte("\n")))
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}

func TestInterrupted(t *testing.T) {
	assert.True(t, Interrupted(context.DeadlineExceeded))
	assert.False(t, Interrupted(errors.New("other")))
	assert.False(t, Interrupted(nil))
}
