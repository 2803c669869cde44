// Package retrieval implements the long-term memory retrieval engine: embed
// the query, fetch nearest-neighbour candidates, re-rank with composite
// scoring, deduplicate, and bump access statistics for the winners.
//
// Retrieval runs outside the memory gate. It holds no mutable conversation
// state and may be called concurrently.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/kadonomaro197-cloud/AiD/internal/entity"
	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings"
)

// Config tunes the retrieval pipeline. Zero values select the defaults.
type Config struct {
	// CandidateLimit is how many raw neighbours are fetched before
	// re-ranking. Default 50.
	CandidateLimit int

	// MinScore is the composite-score floor below which results are
	// discarded. Default 0.35.
	MinScore float64

	// PreferredScore is the higher bar tried first; when no candidate
	// clears it, retrieval falls back to MinScore. Default 0.40.
	PreferredScore float64

	// DedupSimilarity is the Jaro-Winkler threshold above which two
	// result texts count as duplicates. Default 0.95.
	DedupSimilarity float64

	// TouchTop is how many of the returned results get their access
	// statistics bumped. Default 5.
	TouchTop int
}

func (c Config) withDefaults() Config {
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = 50
	}
	if c.MinScore <= 0 {
		c.MinScore = 0.35
	}
	if c.PreferredScore <= 0 {
		c.PreferredScore = 0.40
	}
	if c.DedupSimilarity <= 0 {
		c.DedupSimilarity = 0.95
	}
	if c.TouchTop <= 0 {
		c.TouchTop = 5
	}
	return c
}

// Engine retrieves relevant long-term memories for a query.
type Engine struct {
	store   memory.VectorStore
	embed   embeddings.Provider
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
}

// New constructs an Engine. store and embed must be non-nil.
func New(store memory.VectorStore, embed embeddings.Provider, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:   store,
		embed:   embed,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: observe.DefaultMetrics(),
	}
}

// Retrieve returns up to topK memories relevant to query, best first.
// Returning fewer than topK (or none) is normal for small or unrelated
// stores. An embedding failure is reported as [memory.ErrEmbeddingFailure];
// a store failure as [memory.ErrStorageUnavailable].
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]memory.RetrievalResult, error) {
	if topK <= 0 || query == "" {
		return nil, nil
	}
	start := time.Now()

	vec, err := e.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbeddingFailure, err)
	}

	hits, err := e.store.Search(ctx, vec, e.cfg.CandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	now := time.Now()
	queryEntities := entity.Extract(query)

	scored := make([]memory.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		scored = append(scored, score(h, queryEntities, now))
	}

	// Prefer high-quality results; fall back to the lower floor only when
	// nothing clears the preferred bar.
	kept := filterByScore(scored, e.cfg.PreferredScore)
	if len(kept) == 0 {
		kept = filterByScore(scored, e.cfg.MinScore)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Record.CreatedAt.After(kept[j].Record.CreatedAt)
	})

	kept = e.dedupe(kept)
	if len(kept) > topK {
		kept = kept[:topK]
	}

	e.touchTop(ctx, kept)
	e.metrics.ObserveRetrieval(ctx, time.Since(start), len(kept))
	return kept, nil
}

// filterByScore keeps results at or above threshold, preserving order.
func filterByScore(results []memory.RetrievalResult, threshold float64) []memory.RetrievalResult {
	var kept []memory.RetrievalResult
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// dedupe removes near-duplicate texts, keeping the earlier (higher-scoring)
// entry. Input must already be sorted best-first.
func (e *Engine) dedupe(results []memory.RetrievalResult) []memory.RetrievalResult {
	kept := results[:0:0]
	for _, r := range results {
		dup := false
		for _, k := range kept {
			if matchr.JaroWinkler(r.Record.Content, k.Record.Content, true) > e.cfg.DedupSimilarity {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, r)
		}
	}
	return kept
}

// touchTop bumps access statistics for the best results. Failures only get
// logged; retrieval output is already final.
func (e *Engine) touchTop(ctx context.Context, results []memory.RetrievalResult) {
	n := e.cfg.TouchTop
	if n > len(results) {
		n = len(results)
	}
	if n == 0 {
		return
	}
	ids := make([]string, 0, n)
	for _, r := range results[:n] {
		ids = append(ids, r.Record.ID.String())
	}
	if err := e.store.TouchAccess(ctx, ids...); err != nil {
		e.log.Warn("failed to update memory access stats", "count", n, "error", err)
	}
}
