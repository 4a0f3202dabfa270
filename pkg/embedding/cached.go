package embedding

import (
	"context"
	"time"

	"github.com/azera-ai/azera/pkg/logger"
	"github.com/azera-ai/azera/pkg/metrics"
)

// CachedProvider wraps a Provider with a read-through Cache. Hits skip the
// model entirely; misses call the model and write back asynchronously so
// the caller is never blocked on the cache store.
type CachedProvider struct {
	inner   Provider
	cache   *Cache
	metrics *metrics.Manager
	log     logger.Logger
}

// NewCachedProvider wraps inner with cache.
func NewCachedProvider(inner Provider, cache *Cache, m *metrics.Manager, log logger.Logger) *CachedProvider {
	if m == nil {
		m = metrics.NoOpManager()
	}
	if log == nil {
		log = logger.Global()
	}
	return &CachedProvider{inner: inner, cache: cache, metrics: m, log: log}
}

// Dimension returns the wrapped provider's vector width.
func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

// Embed returns the cached vector when present, otherwise asks the wrapped
// provider and stores the result in the background.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	if vec, ok := p.cache.Get(ctx, text); ok {
		p.metrics.RecordEmbedding("hit", time.Since(start))
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		p.metrics.RecordEmbedding("error", time.Since(start))
		return nil, err
	}
	p.metrics.RecordEmbedding("miss", time.Since(start))

	go func(vec []float32) {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.cache.Put(writeCtx, text, vec); err != nil {
			p.log.Warn("failed to cache embedding", "error", err)
		}
	}(vec)

	return vec, nil
}
