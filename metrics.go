package anneal

import (
	"math"
	"sync/atomic"
	"time"
)

// MetricsObserver defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
// Implementations must be safe for concurrent use.
//
// Example Prometheus integration:
//
//	type PrometheusObserver struct {
//	    steps       *prometheus.CounterVec
//	    temperature prometheus.Gauge
//	}
//
//	func (p *PrometheusObserver) OnStep(accepted bool, total, temperature float64) {
//	    p.steps.WithLabelValues(strconv.FormatBool(accepted)).Inc()
//	    p.temperature.Set(temperature)
//	}
type MetricsObserver interface {
	// OnBuild is called once the distance store is available.
	// cached reports whether it was loaded from the distance cache.
	OnBuild(rows, pairs int, cached bool, duration time.Duration, err error)

	// OnStep is called after every annealing step with the total energy and
	// temperature after the step.
	OnStep(accepted bool, total, temperature float64)

	// OnRun is called when Run returns.
	OnRun(iterations, accepted, rejected uint64, energy float64, duration time.Duration, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnBuild(int, int, bool, time.Duration, error)                {}
func (NoopMetricsObserver) OnStep(bool, float64, float64)                              {}
func (NoopMetricsObserver) OnRun(uint64, uint64, uint64, float64, time.Duration, error) {}

// BasicMetricsObserver provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsObserver struct {
	Builds          atomic.Int64
	BuildErrors     atomic.Int64
	CacheHits       atomic.Int64
	BuildNanos      atomic.Int64
	Steps           atomic.Int64
	Accepted        atomic.Int64
	Runs            atomic.Int64
	RunErrors       atomic.Int64
	RunNanos        atomic.Int64
	energyBits      atomic.Uint64
	temperatureBits atomic.Uint64
}

// OnBuild implements MetricsObserver.
func (b *BasicMetricsObserver) OnBuild(_, _ int, cached bool, duration time.Duration, err error) {
	b.Builds.Add(1)
	b.BuildNanos.Add(duration.Nanoseconds())
	if cached {
		b.CacheHits.Add(1)
	}
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// OnStep implements MetricsObserver.
func (b *BasicMetricsObserver) OnStep(accepted bool, total, temperature float64) {
	b.Steps.Add(1)
	if accepted {
		b.Accepted.Add(1)
	}
	b.energyBits.Store(math.Float64bits(total))
	b.temperatureBits.Store(math.Float64bits(temperature))
}

// OnRun implements MetricsObserver.
func (b *BasicMetricsObserver) OnRun(_, _, _ uint64, energy float64, duration time.Duration, err error) {
	b.Runs.Add(1)
	b.RunNanos.Add(duration.Nanoseconds())
	b.energyBits.Store(math.Float64bits(energy))
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsObserver) GetStats() BasicMetricsStats {
	steps := b.Steps.Load()
	var rate float64
	if steps > 0 {
		rate = float64(b.Accepted.Load()) / float64(steps)
	}
	return BasicMetricsStats{
		Builds:         b.Builds.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		CacheHits:      b.CacheHits.Load(),
		BuildNanos:     b.BuildNanos.Load(),
		Steps:          steps,
		Accepted:       b.Accepted.Load(),
		AcceptanceRate: rate,
		Runs:           b.Runs.Load(),
		RunErrors:      b.RunErrors.Load(),
		RunNanos:       b.RunNanos.Load(),
		Energy:         math.Float64frombits(b.energyBits.Load()),
		Temperature:    math.Float64frombits(b.temperatureBits.Load()),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsObserver state.
type BasicMetricsStats struct {
	Builds         int64
	BuildErrors    int64
	CacheHits      int64
	BuildNanos     int64
	Steps          int64
	Accepted       int64
	AcceptanceRate float64
	Runs           int64
	RunErrors      int64
	RunNanos       int64
	Energy         float64
	Temperature    float64
}
