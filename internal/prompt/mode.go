package prompt

import (
	"github.com/kadonomaro197-cloud/AiD/internal/rag"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// Mode selects which budget table and persona register a prompt is built
// with.
type Mode string

const (
	// ModeChat is ordinary conversation.
	ModeChat Mode = "chat"

	// ModeMemory is selected when retrieved memories are relevant enough
	// to anchor the reply.
	ModeMemory Mode = "memory"

	// ModeRAG is selected for knowledge-base lookups with no personal
	// memory match.
	ModeRAG Mode = "rag"
)

// DefaultMemoryModeScore is the composite retrieval score at or above which
// a hit pulls the prompt into memory mode.
const DefaultMemoryModeScore = 0.55

// ModeDecision is the classifier's output with the signal that produced it.
type ModeDecision struct {
	Mode   Mode
	Reason string
}

// ClassifyMode picks the prompt mode. Pure function of its inputs:
// memory wins over rag, rag over chat. memoryScore ≤ 0 selects
// [DefaultMemoryModeScore].
func ClassifyMode(userMessage string, retrieval []memory.RetrievalResult, memoryScore float64) ModeDecision {
	if memoryScore <= 0 {
		memoryScore = DefaultMemoryModeScore
	}
	for _, r := range retrieval {
		if r.Score >= memoryScore {
			return ModeDecision{Mode: ModeMemory, Reason: "retrieval hit above threshold"}
		}
	}
	if rag.IsKnowledgeQuery(userMessage) {
		return ModeDecision{Mode: ModeRAG, Reason: "knowledge-base query"}
	}
	return ModeDecision{Mode: ModeChat, Reason: "default"}
}
