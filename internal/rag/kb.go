package rag

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxExcerpt caps how much of a document a lookup returns.
const maxExcerpt = 1200

// Document is one knowledge-base entry.
type Document struct {
	Title string
	Text  string
}

// KnowledgeBase is a read-only collection of reference documents loaded from
// a directory of markdown and text files. Lookups are naive keyword matches;
// the vector store is reserved for personal memories.
type KnowledgeBase struct {
	docs []Document
	log  *slog.Logger
}

// LoadKnowledgeBase reads every .md and .txt file under dir. A missing
// directory yields an empty knowledge base; a persona without reference
// material is a valid configuration.
func LoadKnowledgeBase(dir string, log *slog.Logger) *KnowledgeBase {
	if log == nil {
		log = slog.Default()
	}
	kb := &KnowledgeBase{log: log}
	if dir == "" {
		return kb
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("knowledge base directory unreadable, continuing without it", "dir", dir, "error", err)
		return kb
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn("skipping unreadable knowledge file", "file", e.Name(), "error", err)
			continue
		}
		kb.docs = append(kb.docs, Document{
			Title: strings.TrimSuffix(e.Name(), ext),
			Text:  string(data),
		})
	}
	sort.Slice(kb.docs, func(i, j int) bool { return kb.docs[i].Title < kb.docs[j].Title })
	log.Info("knowledge base loaded", "documents", len(kb.docs))
	return kb
}

// Size returns the number of loaded documents.
func (kb *KnowledgeBase) Size() int { return len(kb.docs) }

// Lookup returns an excerpt from the best-matching document, or "" when
// nothing matches. Scoring counts query keyword occurrences; ties go to the
// alphabetically first document.
func (kb *KnowledgeBase) Lookup(ctx context.Context, query string) string {
	if err := ctx.Err(); err != nil {
		return ""
	}
	keywords := queryKeywords(query)
	if len(keywords) == 0 {
		return ""
	}

	bestScore := 0
	bestIdx := -1
	for i, d := range kb.docs {
		lower := strings.ToLower(d.Text)
		score := 0
		for _, kw := range keywords {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return ""
	}
	return excerpt(kb.docs[bestIdx], keywords)
}

// queryKeywords extracts lowercase terms of three letters or more.
func queryKeywords(query string) []string {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

// excerpt returns up to maxExcerpt characters around the first keyword hit.
func excerpt(d Document, keywords []string) string {
	lower := strings.ToLower(d.Text)
	at := -1
	for _, kw := range keywords {
		if i := strings.Index(lower, kw); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		at = 0
	}
	// Back up to the start of the containing line.
	start := strings.LastIndexByte(d.Text[:at], '\n') + 1
	end := start + maxExcerpt
	if end >= len(d.Text) {
		return d.Title + ":\n" + strings.TrimSpace(d.Text[start:])
	}
	if nl := strings.LastIndexByte(d.Text[start:end], '\n'); nl > 0 {
		end = start + nl
	}
	return d.Title + ":\n" + strings.TrimSpace(d.Text[start:end])
}
