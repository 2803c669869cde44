// Package persona builds the character layer of the system prompt and
// tracks relationship progression with the user.
package persona

import (
	"strings"

	"github.com/kadonomaro197-cloud/AiD/internal/prompt"
)

// Persona is the character definition, usually loaded from configuration.
type Persona struct {
	// Name the character goes by.
	Name string

	// Description is the core character sketch, written in second person.
	Description string

	// Traits color the voice ("dry humor", "plainspoken").
	Traits []string

	// Boundaries the character keeps regardless of mode.
	Boundaries []string
}

// Per-mode guidance appended after the character sketch.
var modeGuidance = map[prompt.Mode]string{
	prompt.ModeChat:   "Right now you are just talking. Stay in character, keep replies conversational, and let the conversation breathe.",
	prompt.ModeMemory: "You remember relevant things about this person; let those memories shape your reply naturally, as a friend would, without announcing that you looked anything up.",
	prompt.ModeRAG:    "The person wants factual information. Answer accurately and concisely first, in your own voice, before adding color.",
}

// SystemPrompt renders the persona block for one prompt mode, including the
// relationship context line.
func (p Persona) SystemPrompt(mode prompt.Mode, rel Summary) string {
	var b strings.Builder
	if p.Name != "" {
		b.WriteString("You are ")
		b.WriteString(p.Name)
		b.WriteString(". ")
	}
	b.WriteString(strings.TrimSpace(p.Description))
	if len(p.Traits) > 0 {
		b.WriteString("\nYour manner: ")
		b.WriteString(strings.Join(p.Traits, ", "))
		b.WriteString(".")
	}
	if len(p.Boundaries) > 0 {
		b.WriteString("\nYou always: ")
		b.WriteString(strings.Join(p.Boundaries, "; "))
		b.WriteString(".")
	}
	b.WriteString("\n\n")
	b.WriteString(rel.ContextLine())
	if g, ok := modeGuidance[mode]; ok {
		b.WriteString("\n\n")
		b.WriteString(g)
	}
	return b.String()
}
