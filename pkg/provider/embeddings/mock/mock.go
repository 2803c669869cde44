// Package mock is the in-memory test double for [embeddings.Provider].
// Tests configure canned vectors or errors through exported fields and
// inspect the recorded calls afterwards; the zero value works as a
// provider that embeds everything to an empty vector.
package mock

import (
	"context"
	"sync"

	"github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings"
)

// EmbedCall records one Embed invocation.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records one EmbedBatch invocation. Texts is a copy, so a
// caller reusing its input slice cannot disturb the record.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider implements [embeddings.Provider] from configurable fields.
// Configure before first use; the mutex only guards the call records, so
// concurrent reconfiguration mid-test is not supported.
type Provider struct {
	mu sync.Mutex

	// EmbedResult and EmbedErr are returned verbatim from Embed.
	EmbedResult []float32
	EmbedErr    error

	// EmbedBatchResult is returned by EmbedBatch when set; otherwise the
	// call yields one nil vector per input text. EmbedBatchErr wins over
	// both.
	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	// DimensionsValue and ModelIDValue are the static metadata answers.
	DimensionsValue int
	ModelIDValue    string

	// Recorded calls, in order.
	EmbedCalls      []EmbedCall
	EmbedBatchCalls []EmbedBatchCall

	DimensionsCallCount int
	ModelIDCallCount    int
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	return p.EmbedResult, p.EmbedErr
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	return make([][]float32, len(texts)), nil
}

func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears the call records without touching the configured responses.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}

var _ embeddings.Provider = (*Provider)(nil)
