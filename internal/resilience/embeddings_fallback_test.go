package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	embmock "github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings/mock"
)

func TestEmbeddingsFallback_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{EmbedResult: []float32{1, 0}, DimensionsValue: 2}
	secondary := &embmock.Provider{EmbedResult: []float32{0, 1}, DimensionsValue: 2}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[0] != 1 {
		t.Fatalf("vec = %v, want primary's result", vec)
	}
	if len(secondary.EmbedCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedCalls))
	}
}

func TestEmbeddingsFallback_Failover(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("primary down"), DimensionsValue: 2}
	secondary := &embmock.Provider{EmbedResult: []float32{0, 1}, DimensionsValue: 2}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vec[1] != 1 {
		t.Fatalf("vec = %v, want secondary's result", vec)
	}
}

func TestEmbeddingsFallback_AllFail(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedErr: errors.New("secondary down")}

	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, memory.ErrEmbeddingFailure) {
		t.Fatalf("err = %v, want memory.ErrEmbeddingFailure", err)
	}
}

func TestEmbeddingsFallback_StaticMetadataFromPrimary(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 768, ModelIDValue: "embed-v1"}
	fb := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})

	if got := fb.Dimensions(); got != 768 {
		t.Fatalf("Dimensions = %d, want 768", got)
	}
	if got := fb.ModelID(); got != "embed-v1" {
		t.Fatalf("ModelID = %q, want embed-v1", got)
	}
}
