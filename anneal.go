package anneal

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/assign"
	"github.com/hupe1980/anneal/internal/engine"
	"github.com/hupe1980/anneal/internal/pairstore"
	"github.com/hupe1980/anneal/internal/resource"
	"github.com/hupe1980/anneal/internal/scale"
	"github.com/hupe1980/anneal/result"
	"github.com/hupe1980/anneal/table"
)

// seedMix decorrelates the two PCG state words derived from one seed.
const seedMix = 0x9e3779b97f4a7c15

// Config holds the annealing parameters.
type Config struct {
	// K is the number of clusters.
	K int
	// Temperature is the initial temperature T0.
	Temperature float64
	// Cooling is the factor applied to the temperature after every step.
	Cooling float64
	// MaxIterations is the number of proposals the chain makes.
	MaxIterations int
}

// DefaultConfig returns the defaults of the command line tool for k clusters.
func DefaultConfig(k int) Config {
	return Config{
		K:             k,
		Temperature:   20,
		Cooling:       0.9995,
		MaxIterations: 1_000_000,
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case c.K <= 0:
		return &ConfigError{Field: "K", Reason: "must be positive"}
	case !(c.Temperature > 0) || math.IsInf(c.Temperature, 0):
		return &ConfigError{Field: "Temperature", Reason: "must be positive and finite"}
	case !(c.Cooling > 0 && c.Cooling < 1):
		return &ConfigError{Field: "Cooling", Reason: "must be in (0,1)"}
	case c.MaxIterations <= 0:
		return &ConfigError{Field: "MaxIterations", Reason: "must be positive"}
	}
	return nil
}

// Clusterer partitions the rows of a table into K clusters by simulated
// annealing. Build one with New, then call Run once.
type Clusterer struct {
	cfg  Config
	opts options

	names      []string
	data       [][]float64
	degenerate *bitset.BitSet

	rc     *resource.Controller
	store  *pairstore.Store
	eng    *engine.Engine
	seed   uint64
	cached bool

	ran    atomic.Bool
	closed atomic.Bool
}

// New validates tbl and cfg, normalizes a copy of the rows to [0,1] per row,
// computes (or loads) all pairwise distances and draws a random initial
// assignment. tbl is not modified.
func New(ctx context.Context, tbl *table.Table, cfg Config, optFns ...Option) (*Clusterer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkTable(tbl); err != nil {
		return nil, err
	}

	o := applyOptions(optFns)
	logger := o.logger.WithK(cfg.K)

	c := &Clusterer{
		cfg:   cfg,
		opts:  o,
		names: append([]string(nil), tbl.Names...),
		data:  tbl.Clone().Rows,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			MaxWorkers:         int64(workerCount(o.workers)),
			IOLimitBytesPerSec: o.cacheIOLimit,
		}),
	}

	degenerate, err := scale.MinMaxRows(c.data, o.zeroRange)
	logger.LogNormalize(ctx, len(c.data), int(degenerate.Count()), err)
	if err != nil {
		return nil, err
	}
	c.degenerate = degenerate

	rng := o.rng
	if rng == nil {
		c.seed = o.seed
		if !o.seeded {
			c.seed = rand.Uint64()
		}
		rng = rand.New(rand.NewPCG(c.seed, c.seed^seedMix))
		logger = logger.WithSeed(c.seed)
	}
	c.opts.logger = logger

	start := time.Now()
	store, cached, err := c.loadOrBuild(ctx)
	o.metrics.OnBuild(len(c.data), pairstore.Pairs(len(c.data)), cached, time.Since(start), err)
	if err != nil {
		logger.LogBuild(ctx, len(c.data), 0, 0, err)
		return nil, err
	}
	if !cached {
		logger.LogBuild(ctx, len(c.data), store.Len(), time.Since(start), nil)
	}
	c.store = store
	c.cached = cached

	a, err := assign.Random(len(c.data), cfg.K, rng)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.New(store, a, engine.Config{
		Temperature: cfg.Temperature,
		Cooling:     cfg.Cooling,
	}, rng,
		engine.WithStepHook(func(ev engine.StepEvent) {
			o.metrics.OnStep(ev.Accepted, ev.Total, ev.Temperature)
		}),
		engine.WithLogger(logger.Logger),
		engine.WithProgressInterval(o.progressInterval),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.eng = eng
	return c, nil
}

func checkTable(tbl *table.Table) error {
	if tbl == nil || tbl.Len() == 0 {
		return ErrEmptyTable
	}
	if len(tbl.Names) != len(tbl.Rows) {
		return &ConfigError{Field: "table", Reason: "needs one name per row"}
	}
	dim := len(tbl.Rows[0])
	if dim == 0 {
		return &ErrDimensionMismatch{Row: 0, Expected: 1, Actual: 0}
	}
	for i, row := range tbl.Rows {
		if len(row) != dim {
			return &ErrDimensionMismatch{Row: i, Expected: dim, Actual: len(row)}
		}
		if j := distance.FirstNonFinite(row); j >= 0 {
			return &NonFiniteError{Row: i, Column: j, Value: row[j]}
		}
	}
	return nil
}

// Run executes the chain for Config.MaxIterations steps.
//
// If ctx is cancelled the chain stops at the next step boundary; Run then
// returns the result reached so far together with the context error. Run
// may be called once; later calls return ErrAlreadyRun.
func (c *Clusterer) Run(ctx context.Context) (*Result, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.ran.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	start := time.Now()
	_, err := c.eng.Run(ctx, c.cfg.MaxIterations)

	stats := c.eng.Stats()
	res := &Result{
		Names:       c.names,
		Clusters:    c.eng.Assignment().Slice(),
		Sizes:       c.eng.Assignment().Sizes(),
		Energies:    c.eng.Energies(),
		Energy:      c.eng.Total(),
		Temperature: c.eng.Temperature(),
		Iterations:  stats.Iterations,
		Accepted:    stats.Accepted,
		Rejected:    stats.Rejected,
		Seed:        c.seed,
		Duration:    time.Since(start),
	}

	c.opts.metrics.OnRun(res.Iterations, res.Accepted, res.Rejected, res.Energy, res.Duration, err)
	c.opts.logger.LogRun(ctx, res, err)
	return res, err
}

// Config returns the parameters the clusterer was built with.
func (c *Clusterer) Config() Config { return c.cfg }

// Seed returns the seed of the built-in random source. It is 0 when the
// source was injected with WithRand.
func (c *Clusterer) Seed() uint64 { return c.seed }

// FromCache reports whether the distances were loaded from the cache.
func (c *Clusterer) FromCache() bool { return c.cached }

// Names returns the row names in input order.
func (c *Clusterer) Names() []string {
	return append([]string(nil), c.names...)
}

// Data returns a copy of the normalized rows.
func (c *Clusterer) Data() [][]float64 {
	out := make([][]float64, len(c.data))
	for i, row := range c.data {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Degenerate returns the indices of rows whose values were all equal.
func (c *Clusterer) Degenerate() []int {
	out := make([]int, 0, c.degenerate.Count())
	for i, ok := c.degenerate.NextSet(0); ok; i, ok = c.degenerate.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// MemoryUsage returns the bytes held by the distance store.
func (c *Clusterer) MemoryUsage() int64 { return c.rc.MemoryUsage() }

// Close releases the distance store. Run is unavailable afterwards.
// Close is safe to call multiple times.
func (c *Clusterer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.store.Close()
	return nil
}

// Result is the outcome of a run.
type Result struct {
	// Names are the row names in input order.
	Names []string
	// Clusters holds the 0-based cluster of every row.
	Clusters []int
	// Sizes holds the member count of every cluster.
	Sizes []int
	// Energies holds the sum of pairwise distances within every cluster.
	Energies []float64
	// Energy is the mean of Energies.
	Energy float64
	// Temperature is the temperature after the last step.
	Temperature float64

	Iterations uint64
	Accepted   uint64
	Rejected   uint64

	Seed     uint64
	Duration time.Duration
}

// WriteTSV writes the assignment as "Rowname<sep>Cluster" with 1-based
// cluster ids.
func (r *Result) WriteTSV(w io.Writer, sep rune) error {
	return result.WriteTSV(w, r.Names, r.Clusters, sep)
}

// Interrupted reports whether err means the run stopped early on its
// context.
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
