package resilience

import (
	"context"
	"fmt"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with failover across
// multiple embedding backends, each behind its own breaker. Memory formation
// and retrieval both embed through this type, so a hosted API outage shifts
// them to the next backend instead of stalling the turn.
//
// All backends must produce vectors of the same dimensionality, or retrieval
// against previously stored vectors will silently degrade.
type EmbeddingsFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional embeddings provider as a fallback.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed computes the embedding using the first healthy provider. When every
// backend fails the error matches both [memory.ErrEmbeddingFailure] and
// [ErrAllFailed], so memory-path callers can classify it without importing
// this package's sentinel.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", memory.ErrEmbeddingFailure, err)
	}
	return vec, nil
}

// EmbedBatch computes the batch using the first healthy provider.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", memory.ErrEmbeddingFailure, err)
	}
	return vecs, nil
}

// Dimensions returns the primary's vector dimensionality. This does not
// participate in failover because dimensionality is static metadata.
func (f *EmbeddingsFallback) Dimensions() int {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Dimensions()
	}
	return 0
}

// ModelID returns the primary's model identifier.
func (f *EmbeddingsFallback) ModelID() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.ModelID()
	}
	return ""
}
