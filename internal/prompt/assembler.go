// Package prompt assembles the model prompt from the persona, the tiered
// conversation window, retrieved memories, and optional reference material,
// under per-mode token budgets.
//
// The assembler never fails: when content outgrows its budget, whole items
// are dropped from the lowest-priority category first (memory context before
// chat history before reference material) and the caller gets exact
// per-category token counts in the [Assembly.Breakdown].
package prompt

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/internal/retrieval"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/llm"
)

// Tier shares of the recent-chat allocation.
const (
	tierShareRecent  = 0.60
	tierShareMedium  = 0.25
	tierShareArchive = 0.15
)

// Config tunes the assembler. Zero values select the defaults.
type Config struct {
	// TotalTokens overrides the whole-prompt ceiling. Default 28000.
	TotalTokens int

	// MemoryModeScore overrides the memory-mode threshold.
	// Default [DefaultMemoryModeScore].
	MemoryModeScore float64
}

// Input carries everything one prompt is built from.
type Input struct {
	UserMessage string
	Retrieval   []memory.RetrievalResult
	Tiers       memory.WindowTiers

	// Persona is the system-layer personality and relationship context.
	Persona string

	// WorldInfo is optional reference material for rag-mode prompts.
	WorldInfo string
}

// Assembly is a finished prompt ready for the model.
type Assembly struct {
	// Messages holds the system turn, the trimmed history, and the user
	// turn, in order.
	Messages []llm.Message

	Mode              Mode
	MaxResponseTokens int

	// Breakdown reports the estimated tokens actually spent per category.
	Breakdown map[Category]int

	// TotalTokens is the estimated prompt size including the user turn.
	TotalTokens int
}

// Assembler builds prompts. Safe for concurrent use.
type Assembler struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
}

// New builds an Assembler.
func New(cfg Config, log *slog.Logger) *Assembler {
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{cfg: cfg, log: log, metrics: observe.DefaultMetrics()}
}

// Classify runs the mode decision with this assembler's configured
// threshold. [Assembler.Assemble] makes the same decision internally from the
// same inputs; callers that need the mode before assembly (persona prompt
// selection) use this so the two can never disagree.
func (a *Assembler) Classify(userMessage string, results []memory.RetrievalResult) ModeDecision {
	return ClassifyMode(userMessage, results, a.cfg.MemoryModeScore)
}

// Assemble builds one prompt. It never returns an error: over-budget content
// is trimmed, and an empty memory context is a valid outcome.
func (a *Assembler) Assemble(ctx context.Context, in Input, now time.Time) Assembly {
	start := time.Now()

	decision := ClassifyMode(in.UserMessage, in.Retrieval, a.cfg.MemoryModeScore)
	budget := BudgetFor(decision.Mode)
	if a.cfg.TotalTokens > 0 {
		budget.TotalLimit = a.cfg.TotalTokens
	}

	// The user turn and the response allowance come off the top; the
	// categories share what is left.
	userTokens := memory.EstimateTokens(in.UserMessage)
	promptLimit := budget.TotalLimit - budget.Response - userTokens
	if promptLimit < 0 {
		promptLimit = 0
	}

	memoryContext := retrieval.FormatForContext(in.Retrieval, now)

	wants := map[Category]int{
		CategorySystem:        capWant(memory.EstimateTokens(in.Persona), budget.Allocations[CategorySystem]),
		CategoryWorldInfo:     capWant(memory.EstimateTokens(in.WorldInfo), budget.Allocations[CategoryWorldInfo]),
		CategoryRecentChat:    capWant(tiersTokens(in.Tiers), budget.Allocations[CategoryRecentChat]),
		CategoryMemoryContext: capWant(memory.EstimateTokens(memoryContext), budget.Allocations[CategoryMemoryContext]),
	}
	granted := Fit(promptLimit, wants)

	persona := truncateToTokens(in.Persona, granted[CategorySystem])
	worldInfo := truncateToTokens(in.WorldInfo, granted[CategoryWorldInfo])
	history := a.trimHistory(in.Tiers, granted[CategoryRecentChat])
	memoryContext = trimMemoryContext(in.Retrieval, granted[CategoryMemoryContext], now)

	system := buildSystem(persona, worldInfo, memoryContext)

	msgs := make([]llm.Message, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: system})
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: in.UserMessage})

	breakdown := map[Category]int{
		CategorySystem:        memory.EstimateTokens(persona),
		CategoryWorldInfo:     memory.EstimateTokens(worldInfo),
		CategoryRecentChat:    messagesTokens(history),
		CategoryMemoryContext: memory.EstimateTokens(memoryContext),
	}
	total := userTokens
	for _, n := range breakdown {
		total += n
	}

	a.metrics.RecordPrompt(ctx, string(decision.Mode))
	a.metrics.AssemblyDuration.Record(ctx, time.Since(start).Seconds())
	a.log.Debug("assembled prompt",
		"mode", decision.Mode,
		"reason", decision.Reason,
		"tokens", total,
		"history_messages", len(history),
		"memories", len(in.Retrieval))

	return Assembly{
		Messages:          msgs,
		Mode:              decision.Mode,
		MaxResponseTokens: budget.Response,
		Breakdown:         breakdown,
		TotalTokens:       total,
	}
}

func capWant(tokens, allocation int) int {
	if tokens > allocation {
		return allocation
	}
	return tokens
}

// trimHistory selects messages for the chat layer. The grant is split
// 60/25/15 over recent/medium/archive; whole messages are dropped from the
// oldest end of each tier, and tokens the older tiers leave unused roll into
// the recent tier.
func (a *Assembler) trimHistory(tiers memory.WindowTiers, grant int) []llm.Message {
	if grant <= 0 {
		return nil
	}
	archiveBudget := int(float64(grant) * tierShareArchive)
	mediumBudget := int(float64(grant) * tierShareMedium)

	archive := selectTail(tiers.Archive, archiveBudget)
	medium := selectTail(tiers.Medium, mediumBudget)
	recentBudget := grant - messagesTokensRaw(archive) - messagesTokensRaw(medium)
	recent := selectTail(tiers.Recent, recentBudget)

	out := make([]llm.Message, 0, len(archive)+len(medium)+len(recent))
	for _, tier := range [][]memory.Message{archive, medium, recent} {
		for _, m := range tier {
			out = append(out, llm.Message{Role: string(m.Role), Content: m.Text})
		}
	}
	return out
}

// selectTail keeps the newest whole messages that fit the budget, preserving
// order.
func selectTail(msgs []memory.Message, budget int) []memory.Message {
	if budget <= 0 {
		return nil
	}
	used := 0
	i := len(msgs)
	for i > 0 {
		n := messageTokens(msgs[i-1])
		if used+n > budget {
			break
		}
		used += n
		i--
	}
	return msgs[i:]
}

// trimMemoryContext re-renders the memory block with fewer results until it
// fits. Results arrive sorted by descending score, so the least relevant
// memories drop first.
func trimMemoryContext(results []memory.RetrievalResult, grant int, now time.Time) string {
	if grant <= 0 || len(results) == 0 {
		return ""
	}
	for k := len(results); k > 0; k-- {
		s := retrieval.FormatForContext(results[:k], now)
		if memory.EstimateTokens(s) <= grant {
			return s
		}
	}
	return ""
}

func buildSystem(persona, worldInfo, memoryContext string) string {
	var b strings.Builder
	b.WriteString(persona)
	if worldInfo != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Reference material for this conversation:\n")
		b.WriteString(worldInfo)
	}
	if memoryContext != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(memoryContext)
	}
	return b.String()
}

func messageTokens(m memory.Message) int {
	if m.TokenCount > 0 {
		return m.TokenCount
	}
	return memory.EstimateTokens(m.Text)
}

func tiersTokens(t memory.WindowTiers) int {
	n := 0
	for _, tier := range [][]memory.Message{t.Recent, t.Medium, t.Archive} {
		n += messagesTokensRaw(tier)
	}
	return n
}

func messagesTokensRaw(msgs []memory.Message) int {
	n := 0
	for _, m := range msgs {
		n += messageTokens(m)
	}
	return n
}

func messagesTokens(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		n += memory.EstimateTokens(m.Content)
	}
	return n
}

// truncateToTokens cuts s so its estimate is at most tokens, without
// splitting a rune.
func truncateToTokens(s string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	max := tokens * 4
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
