package formation

import "strings"

// Importance weights assigned to candidate memories at formation time.
const (
	// ImportanceMarked is assigned when the user explicitly asks to be
	// remembered.
	ImportanceMarked = 2.0

	// ImportancePersonal is assigned to emotional and identity statements.
	ImportancePersonal = 1.8

	// ImportanceEmphasis is assigned to emphasised statements.
	ImportanceEmphasis = 1.5

	// ImportanceBase is the default weight for everything else.
	ImportanceBase = 1.0
)

// memoryMarkers are explicit remember-this requests.
var memoryMarkers = []string{
	"don't forget",
	"dont forget",
	"remember that",
	"remember this",
	"make sure to remember",
	"keep in mind",
	"important to me",
}

// personalMarkers signal identity or strong emotion.
var personalMarkers = []string{
	"i love", "i hate", "i adore", "i can't stand",
	"i'm afraid", "i am afraid", "i fear", "i'm scared",
	"my dream", "my goal", "my biggest",
	"i always", "i never",
	"i am a", "i'm a", "i work as", "i work at",
	"my name is", "call me",
	"my favorite", "my favourite",
	"i believe", "i feel like",
}

// emphasisMarkers signal the statement matters more than usual.
var emphasisMarkers = []string{
	"really", "very", "absolutely", "definitely",
	"so much", "honestly", "seriously",
}

// scoreImportance returns the formation weight for a candidate sentence.
func scoreImportance(sentence string) float64 {
	lower := strings.ToLower(sentence)
	for _, m := range memoryMarkers {
		if strings.Contains(lower, m) {
			return ImportanceMarked
		}
	}
	for _, m := range personalMarkers {
		if strings.Contains(lower, m) {
			return ImportancePersonal
		}
	}
	for _, m := range emphasisMarkers {
		if strings.Contains(lower, m) {
			return ImportanceEmphasis
		}
	}
	return ImportanceBase
}

// firstPersonTokens mark a sentence as being about the speaker, which is
// what long-term memory is for.
var firstPersonTokens = []string{"i ", "i'", "my ", "me ", "mine ", "we ", "our "}

// isCandidate reports whether a sentence is worth remembering or tracking:
// long enough to carry a fact and said in the first person (or explicitly
// marked).
func isCandidate(sentence string, importance float64) bool {
	if importance >= ImportanceMarked {
		return true
	}
	words := strings.Fields(sentence)
	if len(words) < 4 {
		return false
	}
	lower := strings.ToLower(sentence) + " "
	for _, tok := range firstPersonTokens {
		if strings.HasPrefix(lower, tok) || strings.Contains(lower, " "+tok) {
			return true
		}
	}
	return false
}

// splitSentences breaks text into trimmed sentences.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			out = append(out, s)
		}
	}
	for _, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
