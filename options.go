package anneal

import (
	"log/slog"
	"time"

	"github.com/hupe1980/anneal/blobstore"
	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/engine"
	"github.com/hupe1980/anneal/internal/pairstore"
	"github.com/hupe1980/anneal/internal/scale"
)

// ZeroRangePolicy decides how rows with equal values are normalized.
type ZeroRangePolicy = scale.ZeroRangePolicy

const (
	// ZeroRangeZero maps a constant row to all zeros (default).
	ZeroRangeZero = scale.ZeroRangeZero
	// ZeroRangeReject fails New with a *ZeroRangeError.
	ZeroRangeReject = scale.ZeroRangeReject
	// ZeroRangePropagate keeps the NaN values produced by dividing by zero.
	ZeroRangePropagate = scale.ZeroRangePropagate
)

// ParseZeroRangePolicy parses "zero", "reject" or "propagate".
func ParseZeroRangePolicy(s string) (ZeroRangePolicy, error) {
	return scale.ParseZeroRangePolicy(s)
}

// Compression selects the distance cache encoding.
type Compression = pairstore.Compression

const (
	CompressionNone = pairstore.CompressionNone
	CompressionLZ4  = pairstore.CompressionLZ4
	CompressionZSTD = pairstore.CompressionZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	return pairstore.ParseCompression(s)
}

// Source is the random source driving a run. *math/rand/v2.Rand satisfies it.
type Source = engine.Source

type options struct {
	logger           *Logger
	metrics          MetricsObserver
	seed             uint64
	seeded           bool
	rng              Source
	workers          int
	zeroRange        ZeroRangePolicy
	memoryLimit      int64
	metric           distance.Metric
	cacheStore       blobstore.Store
	cacheCompression Compression
	cacheIOLimit     int64
	progressInterval time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := anneal.NewJSONLogger(slog.LevelInfo)
//	c, _ := anneal.New(ctx, tbl, cfg, anneal.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithSeed makes the run reproducible: the same table, config and seed
// yield the same assignment.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.seeded = true
	}
}

// WithRand injects the random source. It takes precedence over WithSeed.
func WithRand(rng Source) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithWorkers bounds the goroutines building the distance store.
// n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithZeroRangePolicy sets how constant rows are normalized.
func WithZeroRangePolicy(p ZeroRangePolicy) Option {
	return func(o *options) {
		o.zeroRange = p
	}
}

// WithMemoryLimit caps the bytes the distance store may hold.
// 0 means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMetric selects the row distance. The default is Euclidean.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithDistanceCache stores the distance store snapshot in store, keyed by a
// fingerprint of the normalized data, and reuses it on later runs over the
// same input.
func WithDistanceCache(store blobstore.Store, c Compression) Option {
	return func(o *options) {
		o.cacheStore = store
		o.cacheCompression = c
	}
}

// WithCacheIOLimit throttles distance cache reads and writes to
// bytesPerSec. 0 means unlimited.
func WithCacheIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.cacheIOLimit = bytesPerSec
	}
}

// WithMetricsObserver configures an observer for build and run metrics.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsObserver:
//
//	metrics := &anneal.BasicMetricsObserver{}
//	c, _ := anneal.New(ctx, tbl, cfg, anneal.WithMetricsObserver(metrics))
//	_, _ = c.Run(ctx)
//	stats := metrics.GetStats()
func WithMetricsObserver(m MetricsObserver) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsObserver{}
		}
		o.metrics = m
	}
}

// WithProgressInterval sets how often Run logs progress at debug level.
// 0 disables progress logging.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metrics:          NoopMetricsObserver{},
		zeroRange:        ZeroRangeZero,
		metric:           distance.MetricEuclidean,
		cacheCompression: CompressionZSTD,
		progressInterval: 5 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
