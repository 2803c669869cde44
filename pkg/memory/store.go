package memory

import "context"

// VectorStore is the long-term memory backend: an append-only collection of
// [MemoryRecord]s addressable by embedding similarity.
//
// Implementations must be safe for concurrent use. Content is never updated
// or deleted once added; TouchAccess mutates only access statistics.
type VectorStore interface {
	// Add stores a new record. rec.ID and rec.Embedding must be set.
	Add(ctx context.Context, rec MemoryRecord) error

	// Search returns up to topK nearest records for the query embedding,
	// ordered by descending similarity. Fewer hits than topK is normal for
	// small stores. Options narrow the candidate set.
	Search(ctx context.Context, embedding []float32, topK int, opts ...SearchOption) ([]SearchHit, error)

	// TouchAccess bumps AccessCount and LastAccessed for the given record
	// IDs. Missing IDs are ignored.
	TouchAccess(ctx context.Context, ids ...string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close flushes and releases backend resources.
	Close(ctx context.Context) error
}

// SearchConfig collects optional search constraints. Backends resolve it via
// [ApplySearchOptions].
type SearchConfig struct {
	// MinSimilarity drops hits whose raw similarity falls below it.
	// Zero keeps every neighbour found.
	MinSimilarity float64
}

// SearchOption narrows a [VectorStore.Search] call.
type SearchOption func(*SearchConfig)

// WithMinSimilarity drops hits whose raw similarity falls below min.
func WithMinSimilarity(min float64) SearchOption {
	return func(c *SearchConfig) {
		c.MinSimilarity = min
	}
}

// ApplySearchOptions folds opts into a concrete config.
func ApplySearchOptions(opts []SearchOption) SearchConfig {
	var c SearchConfig
	for _, o := range opts {
		o(&c)
	}
	return c
}
