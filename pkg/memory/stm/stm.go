// Package stm implements the short-term log: a bounded, disk-backed record
// of recent conversation turns that survives restarts.
//
// The log is a single JSON file, rewritten wholesale on every persist via
// write-to-temp-then-rename so a crash mid-write never corrupts the previous
// snapshot. A corrupt or missing file degrades to an empty log; ingestion
// must never fail because yesterday's history is unreadable.
package stm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// DefaultLimit is the default maximum number of persisted messages.
const DefaultLimit = 200

// maxContentLen caps the stored length of a single message. Longer texts are
// truncated with a marker so one pathological paste cannot bloat the log.
const maxContentLen = 2000

// truncationMarker is appended to truncated message texts.
const truncationMarker = "... [truncated]"

// SaveTrigger decides when the in-memory state is stale enough to persist.
// Either condition alone fires the save.
type SaveTrigger struct {
	// Appends is the dirty-append threshold. Default 20.
	Appends int

	// Interval is the elapsed-time threshold. Default 60s.
	Interval time.Duration
}

// DefaultSaveTrigger returns the standard dual trigger.
func DefaultSaveTrigger() SaveTrigger {
	return SaveTrigger{Appends: 20, Interval: time.Minute}
}

// Due reports whether a persist should run given the number of unsaved
// appends and the time of the last save.
func (t SaveTrigger) Due(dirty int, lastSave, now time.Time) bool {
	if dirty <= 0 {
		return false
	}
	if t.Appends > 0 && dirty >= t.Appends {
		return true
	}
	if t.Interval > 0 && now.Sub(lastSave) >= t.Interval {
		return true
	}
	return false
}

// fileFormat is the on-disk envelope. Versioned so the format can evolve.
type fileFormat struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Messages []memory.Message `json:"messages"`
}

// Log is the short-term log. Methods are not internally synchronised beyond
// what the Persist path needs; the owner serialises access through the
// shared [memory.Gate].
type Log struct {
	path  string
	limit int
	log   *slog.Logger

	msgs     []memory.Message
	lastSave time.Time
}

// Open loads (or initialises) the short-term log at path. A missing file
// yields an empty log; an unreadable or corrupt file is logged and likewise
// degrades to empty rather than failing startup.
func Open(path string, limit int, log *slog.Logger) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Log{path: path, limit: limit, log: log, lastSave: time.Now()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return l
	case err != nil:
		log.Warn("short-term log unreadable, starting empty",
			"path", path, "error", fmt.Errorf("%w: %v", memory.ErrStorageUnavailable, err))
		return l
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		log.Warn("short-term log corrupt, starting empty", "path", path, "error", err)
		return l
	}
	msgs := ff.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	l.msgs = msgs
	return l
}

// Messages returns a copy of the logged messages, oldest first.
func (l *Log) Messages() []memory.Message {
	out := make([]memory.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of logged messages.
func (l *Log) Len() int { return len(l.msgs) }

// LastSave returns when the log last reached disk (or Open time).
func (l *Log) LastSave() time.Time { return l.lastSave }

// Persist replaces the log contents with msgs (trimmed to the configured
// limit, oldest dropped first, long texts truncated) and writes the file
// atomically. On write failure the in-memory state is still updated and an
// error wrapping [memory.ErrStorageUnavailable] is returned for the caller
// to log.
func (l *Log) Persist(ctx context.Context, msgs []memory.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	trimmed := make([]memory.Message, 0, min(len(msgs), l.limit))
	start := 0
	if len(msgs) > l.limit {
		start = len(msgs) - l.limit
	}
	for _, m := range msgs[start:] {
		if len(m.Text) > maxContentLen {
			cut := maxContentLen - len(truncationMarker)
			for cut > 0 && !utf8.RuneStart(m.Text[cut]) {
				cut--
			}
			m.Text = m.Text[:cut] + truncationMarker
			m.TokenCount = memory.EstimateTokens(m.Text)
		}
		trimmed = append(trimmed, m)
	}
	l.msgs = trimmed

	if err := l.writeFile(trimmed); err != nil {
		return fmt.Errorf("%w: persist short-term log: %v", memory.ErrStorageUnavailable, err)
	}
	l.lastSave = time.Now()
	return nil
}

// writeFile writes the snapshot to a temp file in the target directory and
// renames it over the destination. Rename within one directory is atomic on
// POSIX systems, so readers only ever see a complete file.
func (l *Log) writeFile(msgs []memory.Message) error {
	data, err := json.MarshalIndent(fileFormat{
		Version:  1,
		SavedAt:  time.Now().UTC(),
		Messages: msgs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
