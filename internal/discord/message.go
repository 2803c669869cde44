package discord

import "strings"

// maxMessageLen is Discord's hard limit on message content length.
const maxMessageLen = 2000

// stripMention removes mention tags for the given user ID from text. Discord
// renders mentions as "<@ID>" or "<@!ID>" in raw message content.
func stripMention(text, botID string) string {
	if botID == "" {
		return text
	}
	text = strings.ReplaceAll(text, "<@"+botID+">", "")
	text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	return text
}

// splitMessage breaks text into chunks of at most limit runes, preferring to
// break at a newline, then at a space, before cutting mid-word.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastIndexAny(runes[:limit], '\n'); i > 0 {
			cut = i
		} else if i := lastIndexAny(runes[:limit], ' '); i > 0 {
			cut = i
		}
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastIndexAny(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
