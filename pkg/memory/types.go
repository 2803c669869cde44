// Package memory defines the core data model and storage contracts for the
// tiered conversation memory subsystem: the runtime buffer of hot messages,
// the disk-backed short-term log, and the vector-indexed long-term store.
//
// The package itself is storage-agnostic. Concrete backends live in
// subpackages ([github.com/kadonomaro197-cloud/AiD/pkg/memory/chromem] for
// the embedded vector index, postgres for pgvector deployments) and tests use
// the mock subpackage.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation [Message].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// charsPerToken is the rough chars-to-tokens ratio used for budgeting.
const charsPerToken = 4

// EstimateTokens returns an approximate token count for text. The estimate
// only needs to be stable and monotone in length; budgeting never requires
// exact tokenizer output.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Message is a single conversation turn held by the runtime buffer and the
// short-term log. Messages are immutable once created.
type Message struct {
	// ID uniquely identifies the message across restarts.
	ID uuid.UUID `json:"id"`

	// Role is the author of the turn.
	Role Role `json:"role"`

	// Text is the message content.
	Text string `json:"text"`

	// Timestamp is when the message was ingested.
	Timestamp time.Time `json:"timestamp"`

	// TokenCount is the estimated token cost of Text, computed once at
	// ingestion via [EstimateTokens].
	TokenCount int `json:"token_count"`
}

// NewMessage builds a Message with a fresh ID, the given role and text, the
// current time, and a precomputed token estimate.
func NewMessage(role Role, text string, now time.Time) Message {
	return Message{
		ID:         uuid.New(),
		Role:       role,
		Text:       text,
		Timestamp:  now,
		TokenCount: EstimateTokens(text),
	}
}

// MemoryRecord is a long-term memory: a distilled fact about the user or the
// conversation, stored with its embedding vector. Records are append-only;
// after creation only LastAccessed and AccessCount change.
type MemoryRecord struct {
	// ID uniquely identifies the record.
	ID uuid.UUID `json:"id"`

	// Embedding is the dense vector for the record's content. It is
	// populated on write and on search hits; metadata-only reads may leave
	// it nil.
	Embedding []float32 `json:"-"`

	// Content is the remembered text.
	Content string `json:"content"`

	// CreatedAt is when the record was formed.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessed is when the record last appeared in retrieval results.
	LastAccessed time.Time `json:"last_accessed"`

	// AccessCount is how many times the record has been surfaced.
	AccessCount int `json:"access_count"`

	// Importance is the formation-time weight in [1.0, 2.0]. Explicitly
	// marked memories ("remember that ...") carry 2.0, identity and
	// emotional statements 1.8, emphasised statements 1.5, everything
	// else 1.0.
	Importance float64 `json:"importance"`

	// Entities are the named entities extracted from Content at formation
	// time, used for retrieval boosting.
	Entities []string `json:"entities,omitempty"`
}

// ScoreBreakdown carries the individual factors that produced a retrieval
// score, for logging and debugging.
type ScoreBreakdown struct {
	Similarity float64 `json:"similarity"`
	Temporal   float64 `json:"temporal"`
	Access     float64 `json:"access"`
	Entity     float64 `json:"entity"`
	Importance float64 `json:"importance"`
}

// RetrievalResult pairs a [MemoryRecord] with its composite relevance score
// for one query. Results are transient and never persisted.
type RetrievalResult struct {
	Record     MemoryRecord
	Score      float64
	Components ScoreBreakdown
}

// SearchHit is a raw nearest-neighbour hit from a [VectorStore], before
// composite scoring.
type SearchHit struct {
	Record MemoryRecord

	// Similarity is the backend's cosine similarity in [0, 1].
	Similarity float64
}

// WindowTiers partitions a message window by age. Every input message lands
// in exactly one tier and each tier preserves ascending timestamp order.
type WindowTiers struct {
	// Recent holds messages younger than the recent cutoff (default 30m).
	Recent []Message

	// Medium holds messages between the recent and medium cutoffs
	// (default 30m to 6h).
	Medium []Message

	// Archive holds everything older.
	Archive []Message
}

// Total returns the number of messages across all tiers.
func (w WindowTiers) Total() int {
	return len(w.Recent) + len(w.Medium) + len(w.Archive)
}
