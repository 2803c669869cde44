// Package buffer implements the runtime message buffer: the in-process hot
// window of recent conversation turns.
//
// The buffer never does I/O. Persistence belongs to the short-term log; the
// buffer only feeds it snapshots.
package buffer

import (
	"log/slog"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// DefaultCap is the default maximum number of buffered messages.
const DefaultCap = 1000

// OversizeTokenLimit is the per-message token ceiling for the hot buffer.
// Larger messages are rejected here; the short-term log still records them
// in truncated form.
const OversizeTokenLimit = 8000

// Buffer is a FIFO window of [memory.Message] with a hard capacity. It is
// NOT internally synchronised: callers hold the shared [memory.Gate] around
// every method, mirroring how the rest of the mutable memory state is
// guarded.
type Buffer struct {
	msgs []memory.Message
	cap  int

	// dirty counts appends since the last persistence checkpoint.
	dirty int

	log *slog.Logger
}

// New returns a Buffer with the given capacity. A non-positive capacity
// falls back to [DefaultCap].
func New(capacity int, log *slog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if log == nil {
		log = slog.Default()
	}
	return &Buffer{
		msgs: make([]memory.Message, 0, capacity),
		cap:  capacity,
		log:  log,
	}
}

// Append adds msg to the tail. When the buffer is full the oldest message is
// evicted first, so Len never exceeds the capacity. Messages whose token
// estimate exceeds [OversizeTokenLimit] are dropped with a warning; the
// caller's short-term log keeps its own truncated copy.
//
// Returns true when the message entered the buffer.
func (b *Buffer) Append(msg memory.Message) bool {
	if msg.TokenCount > OversizeTokenLimit {
		b.log.Warn("dropping oversized message from runtime buffer",
			"message_id", msg.ID, "tokens", msg.TokenCount, "limit", OversizeTokenLimit)
		return false
	}
	if len(b.msgs) >= b.cap {
		evict := len(b.msgs) - b.cap + 1
		b.msgs = append(b.msgs[:0], b.msgs[evict:]...)
	}
	b.msgs = append(b.msgs, msg)
	b.dirty++
	return true
}

// Snapshot returns a copy of the buffered messages in insertion order. The
// copy is safe to read after the gate is released.
func (b *Buffer) Snapshot() []memory.Message {
	out := make([]memory.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Len returns the number of buffered messages.
func (b *Buffer) Len() int { return len(b.msgs) }

// Dirty returns the number of appends since the last [Buffer.MarkClean].
func (b *Buffer) Dirty() int { return b.dirty }

// MarkClean resets the dirty counter after a successful persistence pass.
func (b *Buffer) MarkClean() { b.dirty = 0 }
