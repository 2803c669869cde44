package retrieval

import (
	"fmt"
	"strings"
	"time"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// FormatForContext renders retrieval results as a prompt section. Pure
// except for the age calculation against now; pass the same now used for
// scoring to keep a turn self-consistent.
//
// Returns the empty string for no results, so callers can skip the memory
// section entirely.
func FormatForContext(results []memory.RetrievalResult, now time.Time) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant things you remember about this person:\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(r.Record.Content))
		b.WriteString(fmt.Sprintf(" (relevance %.2f, from %s", r.Score, formatAge(r.Record.CreatedAt, now)))
		if r.Record.AccessCount > 1 {
			b.WriteString(fmt.Sprintf(", recalled %d times", r.Record.AccessCount))
		}
		b.WriteString(")\n")
	}
	b.WriteString("Weave these memories in naturally when they are relevant; never recite them as a list.")
	return b.String()
}

// formatAge renders how long ago t was in the coarsest sensible unit.
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "earlier"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/(24*7)))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/(24*30)))
	default:
		return fmt.Sprintf("%dy ago", int(d.Hours()/(24*365)))
	}
}
