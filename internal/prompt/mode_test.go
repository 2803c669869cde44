package prompt

import (
	"testing"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

func hits(scores ...float64) []memory.RetrievalResult {
	out := make([]memory.RetrievalResult, len(scores))
	for i, s := range scores {
		out[i] = memory.RetrievalResult{Score: s}
	}
	return out
}

func TestClassifyMode(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		retrieval []memory.RetrievalResult
		want      Mode
	}{
		{"strong memory hit", "how have you been?", hits(0.3, 0.7), ModeMemory},
		{"memory beats rag", "what is a heat pump?", hits(0.8), ModeMemory},
		{"knowledge query", "what is a heat pump?", nil, ModeRAG},
		{"knowledge query weak hits", "explain photosynthesis", hits(0.2), ModeRAG},
		{"plain chat", "had a long day honestly", nil, ModeChat},
		{"weak hits fall to chat", "good morning!", hits(0.4, 0.1), ModeChat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMode(tt.message, tt.retrieval, 0)
			if got.Mode != tt.want {
				t.Errorf("mode = %s (%s), want %s", got.Mode, got.Reason, tt.want)
			}
		})
	}
}

func TestClassifyModeCustomThreshold(t *testing.T) {
	got := ClassifyMode("hello", hits(0.45), 0.4)
	if got.Mode != ModeMemory {
		t.Errorf("mode = %s, want memory with lowered threshold", got.Mode)
	}
}
