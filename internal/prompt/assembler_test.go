package prompt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

func msgOfTokens(role memory.Role, tokens int, ts time.Time) memory.Message {
	return memory.Message{
		Role:       role,
		Text:       strings.Repeat("a", tokens*4),
		Timestamp:  ts,
		TokenCount: tokens,
	}
}

func result(content string, score float64, now time.Time) memory.RetrievalResult {
	return memory.RetrievalResult{
		Record: memory.MemoryRecord{
			Content:   content,
			CreatedAt: now.Add(-24 * time.Hour),
		},
		Score: score,
	}
}

func TestAssembleChatMode(t *testing.T) {
	now := time.Now()
	a := New(Config{}, nil)
	in := Input{
		UserMessage: "good morning!",
		Persona:     "You are Aid, a thoughtful companion.",
		Tiers: memory.WindowTiers{
			Recent: []memory.Message{
				msgOfTokens(memory.RoleUser, 10, now.Add(-2*time.Minute)),
				msgOfTokens(memory.RoleAssistant, 12, now.Add(-time.Minute)),
			},
		},
	}
	got := a.Assemble(context.Background(), in, now)

	if got.Mode != ModeChat {
		t.Fatalf("mode = %s, want chat", got.Mode)
	}
	if got.MaxResponseTokens != BudgetFor(ModeChat).Response {
		t.Errorf("MaxResponseTokens = %d, want %d", got.MaxResponseTokens, BudgetFor(ModeChat).Response)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("got %d messages, want system + 2 history + user", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || !strings.Contains(got.Messages[0].Content, "Aid") {
		t.Errorf("first message is not the persona system turn: %+v", got.Messages[0])
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != "user" || last.Content != "good morning!" {
		t.Errorf("last message is not the user turn: %+v", last)
	}
}

func TestAssembleMemoryModeIncludesContext(t *testing.T) {
	now := time.Now()
	a := New(Config{}, nil)
	in := Input{
		UserMessage: "how have you been?",
		Persona:     "You are Aid.",
		Retrieval:   []memory.RetrievalResult{result("the user's cat is named Miso", 0.8, now)},
	}
	got := a.Assemble(context.Background(), in, now)

	if got.Mode != ModeMemory {
		t.Fatalf("mode = %s, want memory", got.Mode)
	}
	if !strings.Contains(got.Messages[0].Content, "Miso") {
		t.Error("system turn does not carry the retrieved memory")
	}
	if got.Breakdown[CategoryMemoryContext] == 0 {
		t.Error("memory context breakdown is zero despite included memories")
	}
}

func TestAssembleRAGModeIncludesWorldInfo(t *testing.T) {
	now := time.Now()
	a := New(Config{}, nil)
	in := Input{
		UserMessage: "what is a heat pump?",
		Persona:     "You are Aid.",
		WorldInfo:   "A heat pump moves heat instead of generating it.",
	}
	got := a.Assemble(context.Background(), in, now)

	if got.Mode != ModeRAG {
		t.Fatalf("mode = %s, want rag", got.Mode)
	}
	if !strings.Contains(got.Messages[0].Content, "Reference material") {
		t.Error("system turn missing reference section")
	}
	if got.MaxResponseTokens >= BudgetFor(ModeChat).Response {
		t.Error("rag response allowance should be below chat's")
	}
}

func TestClassifyAgreesWithAssemble(t *testing.T) {
	now := time.Now()
	a := New(Config{MemoryModeScore: 0.3}, nil)
	results := []memory.RetrievalResult{result("likes green tea", 0.4, now)}

	decision := a.Classify("what do I usually drink?", results)
	if decision.Mode != ModeMemory {
		t.Fatalf("Classify mode = %s, want memory at score 0.4 with threshold 0.3", decision.Mode)
	}

	asm := a.Assemble(context.Background(), Input{
		UserMessage: "what do I usually drink?",
		Retrieval:   results,
		Persona:     "You are Aid.",
	}, now)
	if asm.Mode != decision.Mode {
		t.Errorf("Assemble mode = %s, Classify said %s", asm.Mode, decision.Mode)
	}
}

// With system 100, world 300, chat 1800 and memory 400 tokens wanted against
// a 2000-token prompt window, the memory context is dropped entirely before
// chat history loses more than its excess.
func TestAssembleTightBudgetDropsMemoryFirst(t *testing.T) {
	now := time.Now()
	userMessage := "hey!" // 1 token
	cfg := Config{TotalTokens: BudgetFor(ModeChat).Response + 1 + 2000}
	a := New(cfg, nil)

	recent := make([]memory.Message, 18)
	for i := range recent {
		recent[i] = msgOfTokens(memory.RoleUser, 100, now.Add(time.Duration(i-18)*time.Minute))
	}
	in := Input{
		UserMessage: userMessage,
		Persona:     strings.Repeat("p", 400),  // 100 tokens
		WorldInfo:   strings.Repeat("w", 1200), // 300 tokens
		Tiers:       memory.WindowTiers{Recent: recent},
		Retrieval: []memory.RetrievalResult{ // below memory-mode threshold
			result(strings.Repeat("remembered fact ", 100), 0.4, now),
		},
	}
	got := a.Assemble(context.Background(), in, now)

	if got.Mode != ModeChat {
		t.Fatalf("mode = %s, want chat", got.Mode)
	}
	if got.Breakdown[CategoryMemoryContext] != 0 {
		t.Errorf("memory context = %d tokens, want 0 (cut first)", got.Breakdown[CategoryMemoryContext])
	}
	if got.Breakdown[CategorySystem] != 100 {
		t.Errorf("system = %d tokens, want 100", got.Breakdown[CategorySystem])
	}
	if got.Breakdown[CategoryWorldInfo] != 300 {
		t.Errorf("world info = %d tokens, want 300", got.Breakdown[CategoryWorldInfo])
	}
	if got.Breakdown[CategoryRecentChat] != 1600 {
		t.Errorf("recent chat = %d tokens, want 1600 (16 whole messages)", got.Breakdown[CategoryRecentChat])
	}
	if got.TotalTokens > 2001 {
		t.Errorf("prompt uses %d tokens, budget allows 2001", got.TotalTokens)
	}
}

func TestAssembleDropsWholeOldestMessages(t *testing.T) {
	now := time.Now()
	msgs := []memory.Message{
		msgOfTokens(memory.RoleUser, 50, now.Add(-3*time.Minute)),
		msgOfTokens(memory.RoleAssistant, 50, now.Add(-2*time.Minute)),
		msgOfTokens(memory.RoleUser, 50, now.Add(-time.Minute)),
	}
	a := New(Config{}, nil)
	history := a.trimHistory(memory.WindowTiers{Recent: msgs}, 120)

	// 120 tokens fit two whole 50-token messages, never a partial third.
	if len(history) != 2 {
		t.Fatalf("kept %d messages, want 2", len(history))
	}
	if history[0].Content != msgs[1].Text {
		t.Error("oldest message was not the one dropped")
	}
}

func TestTrimMemoryContextDropsLowestScored(t *testing.T) {
	now := time.Now()
	results := []memory.RetrievalResult{
		result("first and best memory", 0.9, now),
		result(strings.Repeat("second memory ", 50), 0.5, now),
	}
	full := trimMemoryContext(results, 10000, now)
	if !strings.Contains(full, "second memory") {
		t.Fatal("roomy grant should keep both memories")
	}

	tight := trimMemoryContext(results, 60, now)
	if tight == "" || !strings.Contains(tight, "first and best memory") {
		t.Errorf("tight grant lost the top memory:\n%s", tight)
	}
	if strings.Contains(tight, "second memory") {
		t.Error("tight grant kept the lower-scored memory")
	}
}

func TestTruncateToTokens(t *testing.T) {
	s := strings.Repeat("x", 100)
	if got := truncateToTokens(s, 10); len(got) != 40 {
		t.Errorf("len = %d, want 40", len(got))
	}
	if got := truncateToTokens("short", 10); got != "short" {
		t.Errorf("under-limit text modified: %q", got)
	}
	if got := truncateToTokens(s, 0); got != "" {
		t.Errorf("zero tokens kept %d bytes", len(got))
	}
}
