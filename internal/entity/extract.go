// Package entity extracts named entities from conversation text. Extraction
// is regex-based and deliberately cheap: it runs on every formed memory and
// on every retrieval query, so no model call is involved.
//
// Extracted entities serve two purposes: they are stored on long-term memory
// records at formation time, and retrieval boosts records whose entities
// overlap the query's.
package entity

import (
	"regexp"
	"strings"
)

var (
	// Capitalised word sequences ("Elden Ring", "Miso").
	properNounRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

	// All-caps acronyms of 2+ letters ("NASA", "LLM").
	acronymRe = regexp.MustCompile(`\b[A-Z]{2,}\b`)

	// Alphanumeric model/product identifiers ("GPT-4o", "RTX4090", "M3").
	modelNumberRe = regexp.MustCompile(`\b[A-Za-z]+[-]?\d+[A-Za-z0-9]*\b`)
)

// stopwords are capitalised words that carry no entity signal, mostly
// sentence starters and pronouns.
var stopwords = map[string]struct{}{
	"A": {}, "An": {}, "And": {}, "As": {}, "At": {}, "But": {}, "By": {},
	"Can": {}, "Did": {}, "Do": {}, "Does": {}, "For": {}, "From": {},
	"He": {}, "Her": {}, "His": {}, "How": {}, "I": {}, "If": {}, "In": {},
	"Is": {}, "It": {}, "Its": {}, "Me": {}, "My": {}, "No": {}, "Not": {},
	"Of": {}, "Oh": {}, "Ok": {}, "Okay": {}, "On": {}, "Or": {}, "Our": {},
	"She": {}, "So": {}, "That": {}, "The": {}, "Their": {}, "Then": {},
	"There": {}, "They": {}, "This": {}, "To": {}, "Was": {}, "We": {},
	"Well": {}, "What": {}, "When": {}, "Where": {}, "Which": {}, "Who": {},
	"Why": {}, "Will": {}, "With": {}, "Yes": {}, "You": {}, "Your": {},
}

// Extract returns the distinct entities found in text, in first-appearance
// order. Single capitalised stopwords are filtered; multi-word matches are
// kept whole.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, stop := stopwords[s]; stop {
			return
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	for _, m := range properNounRe.FindAllString(text, -1) {
		// A multi-word match may start with a stopword sentence starter
		// ("The Witcher" is fine, "The" alone is not).
		if !strings.Contains(m, " ") {
			add(m)
			continue
		}
		words := strings.Fields(m)
		if _, stop := stopwords[words[0]]; stop && len(words) == 2 {
			if _, alsoStop := stopwords[words[1]]; alsoStop {
				continue
			}
		}
		add(m)
	}
	for _, m := range acronymRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range modelNumberRe.FindAllString(text, -1) {
		// Skip bare short number-ish tokens like "2nd" or "1st".
		if len(m) < 2 {
			continue
		}
		add(m)
	}
	return out
}

// Overlap counts case-insensitive matches between two entity lists.
func Overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, e := range a {
		set[strings.ToLower(e)] = struct{}{}
	}
	n := 0
	for _, e := range b {
		if _, ok := set[strings.ToLower(e)]; ok {
			n++
		}
	}
	return n
}
