package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hupe1980/anneal/internal/assign"
	"github.com/hupe1980/anneal/internal/energy"
	"github.com/hupe1980/anneal/internal/pairstore"
	"golang.org/x/time/rate"
)

// ErrNoRows is returned when the engine is built over an empty assignment.
var ErrNoRows = errors.New("engine: no rows to cluster")

// MinTemperature is the floor the temperature is clamped to, so repeated
// cooling can never reach zero.
const MinTemperature = math.SmallestNonzeroFloat64

// Source is the random source of a chain. *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// Config holds the chain parameters.
type Config struct {
	Temperature float64
	Cooling     float64
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	if !(c.Temperature > 0) || math.IsInf(c.Temperature, 0) {
		return fmt.Errorf("engine: temperature must be positive and finite, got %v", c.Temperature)
	}
	if !(c.Cooling > 0 && c.Cooling < 1) {
		return fmt.Errorf("engine: cooling must be in (0,1), got %v", c.Cooling)
	}
	return nil
}

// Stats counts the steps of a chain.
type Stats struct {
	Iterations uint64
	Accepted   uint64
	Rejected   uint64
}

// StepEvent describes one completed step.
type StepEvent struct {
	Iteration   uint64
	Accepted    bool
	Total       float64
	Temperature float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithStepHook calls fn after every step.
func WithStepHook(fn func(StepEvent)) Option {
	return func(e *Engine) {
		e.hook = fn
	}
}

// WithLogger sets the logger for progress messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgressInterval sets how often Run logs progress at debug level.
// Zero disables progress logging.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.progressEvery = d
	}
}

// Engine is the annealing state machine. It is not safe for concurrent use.
type Engine struct {
	eval   *energy.Evaluator
	assign *assign.Assignment
	rng    Source

	energies    []float64
	total       float64
	temperature float64
	cooling     float64

	stats Stats

	hook          func(StepEvent)
	logger        *slog.Logger
	progressEvery time.Duration
}

// New builds an engine over store, starting from a.
// The engine takes ownership of a.
func New(store *pairstore.Store, a *assign.Assignment, cfg Config, rng Source, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if a.N() == 0 {
		return nil, ErrNoRows
	}
	if store.N() != a.N() {
		return nil, fmt.Errorf("engine: store covers %d rows, assignment has %d", store.N(), a.N())
	}
	if rng == nil {
		return nil, errors.New("engine: nil random source")
	}

	e := &Engine{
		eval:          energy.New(store),
		assign:        a,
		rng:           rng,
		temperature:   cfg.Temperature,
		cooling:       cfg.Cooling,
		logger:        slog.New(slog.DiscardHandler),
		progressEvery: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.energies = e.eval.All(a)
	e.total = average(e.energies)
	return e, nil
}

func average(energies []float64) float64 {
	var sum float64
	for _, v := range energies {
		sum += v
	}
	return sum / float64(len(energies))
}

// Step performs one propose/accept/cool iteration and reports whether the
// move was accepted.
func (e *Engine) Step() bool {
	accepted := false
	if k := e.assign.K(); k > 1 {
		accepted = e.propose(k)
	}

	e.stats.Iterations++
	if accepted {
		e.stats.Accepted++
	} else {
		e.stats.Rejected++
	}

	e.temperature *= e.cooling
	if e.temperature < MinTemperature {
		e.temperature = MinTemperature
	}

	if e.hook != nil {
		e.hook(StepEvent{
			Iteration:   e.stats.Iterations,
			Accepted:    accepted,
			Total:       e.total,
			Temperature: e.temperature,
		})
	}
	return accepted
}

func (e *Engine) propose(k int) bool {
	row := e.rng.IntN(e.assign.N())
	from := e.assign.Of(row)
	to := e.rng.IntN(k - 1)
	if to >= from {
		to++
	}

	e.assign.Move(row, to)
	eFrom := e.eval.Cluster(e.assign, from)
	eTo := e.eval.Cluster(e.assign, to)

	var sum float64
	for c, v := range e.energies {
		switch c {
		case from:
			sum += eFrom
		case to:
			sum += eTo
		default:
			sum += v
		}
	}
	newTotal := sum / float64(k)

	if newTotal < e.total || math.Exp(-(newTotal-e.total)/e.temperature) > e.rng.Float64() {
		e.energies[from] = eFrom
		e.energies[to] = eTo
		e.total = newTotal
		return true
	}

	e.assign.Move(row, from)
	return false
}

// Run executes maxIter steps and returns the number executed.
//
// The context is checked before every step. On cancellation Run returns the
// steps done so far together with the context error; the state stays
// consistent and can still be read.
func (e *Engine) Run(ctx context.Context, maxIter int) (int, error) {
	progress := rate.Sometimes{Interval: e.progressEvery}

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		e.Step()

		if e.progressEvery > 0 {
			progress.Do(func() {
				e.logger.DebugContext(ctx, "annealing progress",
					"iteration", e.stats.Iterations,
					"of", maxIter,
					"energy", e.total,
					"temperature", e.temperature,
					"accepted", e.stats.Accepted,
				)
			})
		}
	}
	return maxIter, nil
}

// Temperature returns the current temperature.
func (e *Engine) Temperature() float64 { return e.temperature }

// Total returns the average cluster energy of the committed state.
func (e *Engine) Total() float64 { return e.total }

// Energies returns a copy of the per-cluster energies.
func (e *Engine) Energies() []float64 {
	out := make([]float64, len(e.energies))
	copy(out, e.energies)
	return out
}

// Assignment returns the live assignment. Callers must not modify it.
func (e *Engine) Assignment() *assign.Assignment { return e.assign }

// Stats returns the step counters.
func (e *Engine) Stats() Stats { return e.stats }

// DriftError reports a cached cluster energy that no longer matches a full
// recomputation.
type DriftError struct {
	Cluster int
	Cached  float64
	Actual  float64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("engine: cluster %d energy drifted: cached %v, actual %v", e.Cluster, e.Cached, e.Actual)
}

const driftTolerance = 1e-9

// Verify recomputes every cluster energy and compares it with the cache.
func (e *Engine) Verify() error {
	actual := e.eval.All(e.assign)
	for c, v := range actual {
		if !within(e.energies[c], v) {
			return &DriftError{Cluster: c, Cached: e.energies[c], Actual: v}
		}
	}
	if want := average(actual); !within(e.total, want) {
		return &DriftError{Cluster: -1, Cached: e.total, Actual: want}
	}
	return nil
}

func within(a, b float64) bool {
	return math.Abs(a-b) <= driftTolerance*math.Max(1, math.Abs(b))
}
