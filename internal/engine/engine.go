// Package engine drives one conversation turn end to end: memory retrieval
// and knowledge-base lookup in parallel, prompt assembly through the memory
// manager, the model call, and turn completion.
//
// The engine is transport-agnostic; the Discord front-end (and tests) call
// [Engine.Respond] with plain text.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadonomaro197-cloud/AiD/internal/manager"
	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/internal/prompt"
	"github.com/kadonomaro197-cloud/AiD/internal/rag"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/llm"
)

// Per-mode sampling temperatures. Factual lookups decode close to greedy;
// plain chat stays loose.
const (
	chatTemperature   = 0.9
	memoryTemperature = 0.7
	ragTemperature    = 0.3
)

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// RetrieveTopK is how many memories each turn asks for. Default 6.
	RetrieveTopK int
}

func (c Config) withDefaults() Config {
	if c.RetrieveTopK <= 0 {
		c.RetrieveTopK = 6
	}
	return c
}

// Engine turns user messages into replies.
type Engine struct {
	mgr *manager.Manager
	llm llm.Provider
	kb  *rag.KnowledgeBase
	cfg Config

	log     *slog.Logger
	metrics *observe.Metrics
}

// New builds an Engine.
func New(mgr *manager.Manager, provider llm.Provider, kb *rag.KnowledgeBase, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		mgr:     mgr,
		llm:     provider,
		kb:      kb,
		cfg:     cfg.withDefaults(),
		log:     log,
		metrics: observe.DefaultMetrics(),
	}
}

// Respond handles one user message and returns the reply text. Memory
// retrieval failures degrade to a memory-less prompt; a model failure fails
// the turn and leaves post-processing unscheduled.
func (e *Engine) Respond(ctx context.Context, userText string) (string, error) {
	if _, err := e.mgr.Ingest(ctx, memory.RoleUser, userText); err != nil {
		return "", fmt.Errorf("ingest user turn: %w", err)
	}

	// Memory retrieval and the knowledge-base scan are independent; run
	// them side by side.
	var (
		results   []memory.RetrievalResult
		worldInfo string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.mgr.RetrieveMemories(gctx, userText, e.cfg.RetrieveTopK)
		if err != nil {
			e.log.Warn("memory retrieval failed for this turn", "error", err)
			return nil
		}
		results = r
		return nil
	})
	g.Go(func() error {
		worldInfo = e.kb.Lookup(gctx, userText)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	asm, err := e.mgr.AssemblePrompt(ctx, userText, worldInfo, results)
	if err != nil {
		return "", fmt.Errorf("assemble prompt: %w", err)
	}

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    asm.Messages,
		Temperature: temperatureFor(asm.Mode),
		MaxTokens:   asm.MaxResponseTokens,
	})
	e.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordProviderError(ctx, "llm", "complete")
		return "", fmt.Errorf("model completion: %w", err)
	}
	if resp == nil || resp.Content == "" {
		e.metrics.RecordProviderError(ctx, "llm", "empty")
		return "", fmt.Errorf("model completion: empty response")
	}

	if err := e.mgr.CompleteTurn(ctx, userText, resp.Content); err != nil {
		e.log.Warn("turn completion failed, reply still delivered", "error", err)
	}
	e.log.Info("turn complete",
		"mode", asm.Mode,
		"prompt_tokens", asm.TotalTokens,
		"reply_tokens", memory.EstimateTokens(resp.Content),
		"memories", len(results))
	return resp.Content, nil
}

func temperatureFor(mode prompt.Mode) float64 {
	switch mode {
	case prompt.ModeRAG:
		return ragTemperature
	case prompt.ModeMemory:
		return memoryTemperature
	default:
		return chatTemperature
	}
}
