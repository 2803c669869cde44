// Package rag detects knowledge-base queries: questions that ask for factual
// or reference material rather than conversation. The prompt assembler
// switches to the rag mode budget when a message classifies as one and no
// personal memories outrank it.
package rag

import (
	"regexp"
	"strings"
)

// questionStarters open factual questions.
var questionStarters = []string{
	"what is", "what are", "what was", "what's",
	"how does", "how do", "how did", "how can",
	"who is", "who was", "who were",
	"when was", "when did", "when is",
	"where is", "where was",
	"why does", "why do", "why is",
	"explain", "describe", "define",
	"tell me about", "tell me how",
}

// referenceMarkers point at stored documents rather than shared history.
var referenceMarkers = []string{
	"according to",
	"in the docs",
	"in the documentation",
	"look up",
	"search for",
	"from the knowledge base",
	"the wiki",
}

// personalMarkers veto rag classification: questions about the shared
// history belong to chat or memory mode.
var personalMarkers = []string{
	"remember", "we talked", "we discussed", "you said",
	"i told you", "last time", "my ",
}

var trailingQuestion = regexp.MustCompile(`\?\s*$`)

// IsKnowledgeQuery reports whether text reads like a knowledge-base lookup.
// Pure string inspection; no I/O.
func IsKnowledgeQuery(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, m := range personalMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, m := range referenceMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, s := range questionStarters {
		if strings.HasPrefix(lower, s) {
			return true
		}
	}
	// A bare trailing question mark alone is not enough; require a starter
	// somewhere in the sentence for multi-clause messages.
	if trailingQuestion.MatchString(lower) {
		for _, s := range questionStarters {
			if strings.Contains(lower, s) {
				return true
			}
		}
	}
	return false
}
