package anneal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"

	"github.com/hupe1980/anneal/blobstore"
	"github.com/hupe1980/anneal/distance"
	"github.com/hupe1980/anneal/internal/hash"
	"github.com/hupe1980/anneal/internal/pairstore"
	"github.com/hupe1980/anneal/internal/resource"
)

// CacheName returns the distance cache entry name for normalized rows under
// metric m. The name carries the first 128 bits of a SHA-256 over the
// metric, the shape and every value.
func CacheName(rows [][]float64, m distance.Metric) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:%d:", m, len(rows))
	for _, row := range rows {
		_, _ = fmt.Fprintf(h, "%d:", len(row))
		hash.Float64s(h, row)
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("distances-%d-%s.apds", len(rows), hex.EncodeToString(sum[:16]))
}

func workerCount(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func (c *Clusterer) loadOrBuild(ctx context.Context) (*pairstore.Store, bool, error) {
	if c.opts.cacheStore == nil {
		s, err := c.build(ctx)
		return s, false, err
	}

	name := CacheName(c.data, c.opts.metric)
	s, err := c.loadCached(ctx, name)
	switch {
	case err == nil:
		c.opts.logger.LogCache(ctx, "hit", name, nil)
		return s, true, nil
	case errors.Is(err, blobstore.ErrNotFound):
		c.opts.logger.LogCache(ctx, "miss", name, nil)
	case errors.Is(err, ErrMemoryLimitExceeded), ctx.Err() != nil:
		return nil, false, err
	default:
		c.opts.logger.LogCache(ctx, "invalid", name, err)
	}

	s, err = c.build(ctx)
	if err != nil {
		return nil, false, err
	}
	c.opts.logger.LogCache(ctx, "store", name, c.storeCached(ctx, name, s))
	return s, false, nil
}

func (c *Clusterer) build(ctx context.Context) (*pairstore.Store, error) {
	fn, err := distance.Provider(c.opts.metric)
	if err != nil {
		return nil, err
	}
	return pairstore.Build(ctx, c.data, pairstore.BuildOptions{
		Workers:    workerCount(c.opts.workers),
		Distance:   fn,
		Controller: c.rc,
	})
}

func (c *Clusterer) loadCached(ctx context.Context, name string) (*pairstore.Store, error) {
	r, err := c.opts.cacheStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s, err := pairstore.Decode(resource.NewRateLimitedReader(ctx, r, c.rc))
	if err != nil {
		return nil, err
	}
	if s.N() != len(c.data) {
		return nil, fmt.Errorf("cache entry %s covers %d rows, want %d", name, s.N(), len(c.data))
	}
	if err := s.Charge(c.rc); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Clusterer) storeCached(ctx context.Context, name string, s *pairstore.Store) error {
	w, err := c.opts.cacheStore.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.Encode(resource.NewRateLimitedWriter(ctx, w, c.rc), c.opts.cacheCompression); err != nil {
		_ = w.Close()
		_ = c.opts.cacheStore.Delete(ctx, name)
		return err
	}
	return w.Close()
}
