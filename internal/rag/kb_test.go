package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeKB(t *testing.T, files map[string]string) *KnowledgeBase {
	t.Helper()
	dir := t.TempDir()
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return LoadKnowledgeBase(dir, nil)
}

func TestLoadKnowledgeBase(t *testing.T) {
	kb := writeKB(t, map[string]string{
		"pumps.md":   "# Heat pumps\nA heat pump moves heat instead of generating it.",
		"tea.txt":    "Green tea steeps at 80 degrees.",
		"ignore.bin": "binary noise",
	})
	if kb.Size() != 2 {
		t.Errorf("loaded %d documents, want 2", kb.Size())
	}
}

func TestLoadMissingDirectoryDegrades(t *testing.T) {
	kb := LoadKnowledgeBase(filepath.Join(t.TempDir(), "nope"), nil)
	if kb.Size() != 0 {
		t.Errorf("missing dir yielded %d documents", kb.Size())
	}
	if got := kb.Lookup(context.Background(), "anything at all"); got != "" {
		t.Errorf("empty knowledge base returned %q", got)
	}
}

func TestLookupFindsBestDocument(t *testing.T) {
	kb := writeKB(t, map[string]string{
		"pumps.md": "A heat pump moves heat instead of generating it. Heat pumps run on electricity.",
		"tea.md":   "Green tea steeps at 80 degrees for two minutes.",
	})
	got := kb.Lookup(context.Background(), "how does a heat pump work?")
	if !strings.Contains(got, "pumps") || !strings.Contains(got, "moves heat") {
		t.Errorf("lookup returned wrong document:\n%s", got)
	}
	if kb.Lookup(context.Background(), "quantum chromodynamics") != "" {
		t.Error("unmatched query should return nothing")
	}
}
