package embeddings

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Ensure Cached implements Provider at compile time.
var _ Provider = (*Cached)(nil)

// Cached wraps a [Provider] with an in-process ristretto cache keyed by the
// exact input text. Memory formation re-embeds candidate sentences that were
// already embedded during retrieval of the same turn; the cache collapses
// those into one backend call.
//
// Cache cost is the byte size of the vector, so MaxBytes bounds resident
// vector memory rather than entry count.
type Cached struct {
	inner Provider
	cache *ristretto.Cache
}

// CacheConfig sizes the embedding cache.
type CacheConfig struct {
	// MaxBytes bounds the total size of cached vectors. Default 32 MiB.
	MaxBytes int64
}

// NewCached wraps inner with a result cache.
func NewCached(inner Provider, cfg CacheConfig) (*Cached, error) {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		// Counters should be ~10x the expected entry count; assume ~4 KiB
		// per vector.
		NumCounters: maxBytes / 4096 * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed implements [Provider], serving repeated texts from the cache.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// EmbedBatch implements [Provider]. Cached texts are served locally and only
// the misses go to the backend in a single call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			if vec, ok := v.([]float32); ok {
				result[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return result, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embeddings cache: expected %d vectors, got %d", len(missTexts), len(vecs))
	}
	for j, vec := range vecs {
		result[missIdx[j]] = vec
		c.cache.Set(missTexts[j], vec, int64(len(vec)*4))
	}
	return result, nil
}

// Dimensions implements [Provider].
func (c *Cached) Dimensions() int { return c.inner.Dimensions() }

// ModelID implements [Provider].
func (c *Cached) ModelID() string { return c.inner.ModelID() }

// Wait blocks until buffered cache writes have been applied. Mainly useful
// in tests that assert on hit behaviour.
func (c *Cached) Wait() { c.cache.Wait() }

// Close releases the cache's internal goroutines.
func (c *Cached) Close() { c.cache.Close() }
