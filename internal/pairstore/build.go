package pairstore

import (
	"context"
	"runtime"

	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/resource"
	"golang.org/x/sync/errgroup"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Workers bounds the goroutines computing pairs. 0 means GOMAXPROCS.
	Workers int

	// Distance is the row metric. nil means distance.Euclidean.
	Distance distance.Func

	// Controller, if set, is charged for the store memory and provides
	// worker slots.
	Controller *resource.Controller
}

// Build computes the distance of every unordered row pair exactly once.
//
// Rows are split into contiguous ranges of roughly equal pair count; every
// range owns a disjoint slot interval, so the result is identical to a
// sequential build regardless of scheduling.
func Build(ctx context.Context, rows [][]float64, opts BuildOptions) (*Store, error) {
	n := len(rows)
	fn := opts.Distance
	if fn == nil {
		fn = distance.Euclidean
	}

	size := int64(Pairs(n)) * 8
	if err := opts.Controller.AcquireMemory(size); err != nil {
		return nil, err
	}

	data := make([]float64, Pairs(n))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, r := range partition(n, workers*4) {
		g.Go(func() error {
			if err := opts.Controller.AcquireWorker(gctx); err != nil {
				return err
			}
			defer opts.Controller.ReleaseWorker()

			for i := r.lo; i < r.hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				slot := Index(i, i+1, n)
				for j := i + 1; j < n; j++ {
					data[slot] = fn(rows[i], rows[j])
					slot++
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		opts.Controller.ReleaseMemory(size)
		return nil, err
	}

	s, err := New(n, data)
	if err != nil {
		opts.Controller.ReleaseMemory(size)
		return nil, err
	}
	if opts.Controller != nil {
		s.rc = opts.Controller
		s.reserved = size
	}
	return s, nil
}

type rowRange struct {
	lo, hi int
}

// partition splits rows 0..n-1 (the last row starts no pairs) into at most
// parts contiguous ranges with roughly equal pair counts.
func partition(n, parts int) []rowRange {
	total := Pairs(n)
	if total == 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	target := (total + parts - 1) / parts

	var ranges []rowRange
	lo, acc := 0, 0
	for i := 0; i < n-1; i++ {
		acc += n - 1 - i
		if acc >= target {
			ranges = append(ranges, rowRange{lo: lo, hi: i + 1})
			lo, acc = i+1, 0
		}
	}
	if lo < n-1 {
		ranges = append(ranges, rowRange{lo: lo, hi: n - 1})
	}
	return ranges
}
