// Package formation decides which conversation statements become long-term
// memories.
//
// Two paths lead into the vector store: statements important enough on their
// own (explicit remember-this requests, identity and emotional statements)
// are written immediately; everything else memorable is tracked in a
// reinforcement file and promoted once it recurs often enough within the
// reinforcement window.
//
// Formation runs in post-processing, never on the synchronous reply path,
// and never under the memory gate.
package formation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadonomaro197-cloud/AiD/internal/entity"
	"github.com/kadonomaro197-cloud/AiD/internal/observe"
	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	"github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings"
)

// Config tunes formation. Zero values select the defaults.
type Config struct {
	// ImmediateThreshold is the importance at or above which a statement
	// is written without reinforcement. Default 1.8.
	ImmediateThreshold float64

	// ReinforceMentions is how often a tracked statement must recur
	// before promotion. Default 3.
	ReinforceMentions int

	// ReinforceWindow bounds how old mentions may be and still count.
	// Default 30 days.
	ReinforceWindow time.Duration

	// DuplicateSimilarity is the raw vector similarity above which a
	// candidate is considered already stored. Default 0.95.
	DuplicateSimilarity float64
}

func (c Config) withDefaults() Config {
	if c.ImmediateThreshold <= 0 {
		c.ImmediateThreshold = ImportancePersonal
	}
	if c.ReinforceMentions <= 0 {
		c.ReinforceMentions = 3
	}
	if c.ReinforceWindow <= 0 {
		c.ReinforceWindow = 30 * 24 * time.Hour
	}
	if c.DuplicateSimilarity <= 0 {
		c.DuplicateSimilarity = 0.95
	}
	return c
}

// mention tracks sightings of one normalised candidate statement.
type mention struct {
	Text       string      `json:"text"`
	Importance float64     `json:"importance"`
	Seen       []time.Time `json:"seen"`
}

// Formation turns user statements into long-term memories. Safe for
// concurrent use; post-processing tasks from overlapping turns share one
// instance.
type Formation struct {
	store memory.VectorStore
	embed embeddings.Provider
	cfg   Config
	log   *slog.Logger

	mu          sync.Mutex
	trackerPath string
	tracker     map[string]*mention

	metrics *observe.Metrics
}

// New builds a Formation whose reinforcement tracker persists at
// trackerPath. A missing or corrupt tracker file degrades to an empty
// tracker.
func New(store memory.VectorStore, embed embeddings.Provider, trackerPath string, cfg Config, log *slog.Logger) *Formation {
	if log == nil {
		log = slog.Default()
	}
	f := &Formation{
		store:       store,
		embed:       embed,
		cfg:         cfg.withDefaults(),
		log:         log,
		trackerPath: trackerPath,
		tracker:     make(map[string]*mention),
		metrics:     observe.DefaultMetrics(),
	}
	f.loadTracker()
	return f
}

func (f *Formation) loadTracker() {
	data, err := os.ReadFile(f.trackerPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return
	case err != nil:
		f.log.Warn("reinforcement tracker unreadable, starting empty", "path", f.trackerPath, "error", err)
		return
	}
	if err := json.Unmarshal(data, &f.tracker); err != nil {
		f.log.Warn("reinforcement tracker corrupt, starting empty", "path", f.trackerPath, "error", err)
		f.tracker = make(map[string]*mention)
	}
}

func (f *Formation) saveTracker() error {
	data, err := json.MarshalIndent(f.tracker, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracker: %w", err)
	}
	dir := filepath.Dir(f.trackerPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.trackerPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.trackerPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// normalise collapses a sentence to its reinforcement-tracking key.
func normalise(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ProcessTurn examines one user message and writes any memories it
// warrants. Returns how many records were written. An embedding failure
// aborts the turn's formation with [memory.ErrEmbeddingFailure]; the same
// statements can still form later through reinforcement.
func (f *Formation) ProcessTurn(ctx context.Context, userText string, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	formed := 0
	for _, sentence := range splitSentences(userText) {
		importance := scoreImportance(sentence)
		if !isCandidate(sentence, importance) {
			continue
		}

		if importance >= f.cfg.ImmediateThreshold {
			ok, err := f.form(ctx, sentence, importance, now, "immediate")
			if err != nil {
				return formed, err
			}
			if ok {
				formed++
			}
			continue
		}

		if f.reinforce(sentence, importance, now) {
			ok, err := f.form(ctx, sentence, ImportanceEmphasis, now, "reinforced")
			if err != nil {
				return formed, err
			}
			if ok {
				formed++
				delete(f.tracker, normalise(sentence))
			}
		}
	}

	f.pruneTracker(now)
	if err := f.saveTracker(); err != nil {
		f.log.Warn("failed to persist reinforcement tracker", "error", err)
	}
	return formed, nil
}

// reinforce records a sighting and reports whether the statement has now
// recurred enough to promote.
func (f *Formation) reinforce(sentence string, importance float64, now time.Time) bool {
	key := normalise(sentence)
	m, ok := f.tracker[key]
	if !ok {
		m = &mention{Text: sentence, Importance: importance}
		f.tracker[key] = m
	}
	m.Seen = append(m.Seen, now)

	cutoff := now.Add(-f.cfg.ReinforceWindow)
	recent := 0
	for _, t := range m.Seen {
		if t.After(cutoff) {
			recent++
		}
	}
	return recent >= f.cfg.ReinforceMentions
}

// pruneTracker drops mentions with no sightings inside the window.
func (f *Formation) pruneTracker(now time.Time) {
	cutoff := now.Add(-f.cfg.ReinforceWindow)
	for key, m := range f.tracker {
		var kept []time.Time
		for _, t := range m.Seen {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(f.tracker, key)
			continue
		}
		m.Seen = kept
	}
}

// form embeds and writes one memory unless a near-identical record already
// exists. Returns whether a record was written.
func (f *Formation) form(ctx context.Context, content string, importance float64, now time.Time, trigger string) (bool, error) {
	vec, err := f.embed.Embed(ctx, content)
	if err != nil {
		return false, fmt.Errorf("%w: %v", memory.ErrEmbeddingFailure, err)
	}

	// Skip contents the store already knows near-verbatim.
	dups, err := f.store.Search(ctx, vec, 1, memory.WithMinSimilarity(f.cfg.DuplicateSimilarity))
	if err != nil {
		return false, err
	}
	if len(dups) > 0 {
		f.log.Debug("skipping duplicate memory", "content", content)
		return false, nil
	}

	rec := memory.MemoryRecord{
		ID:           uuid.New(),
		Embedding:    vec,
		Content:      content,
		CreatedAt:    now,
		LastAccessed: now,
		Importance:   importance,
		Entities:     entity.Extract(content),
	}
	if err := f.store.Add(ctx, rec); err != nil {
		return false, err
	}
	f.metrics.RecordFormation(ctx, trigger)
	f.log.Info("formed long-term memory", "importance", importance, "trigger", trigger, "entities", len(rec.Entities))
	return true, nil
}
