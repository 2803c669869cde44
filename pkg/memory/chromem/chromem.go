// Package chromem implements the long-term memory store on top of
// chromem-go, an embedded pure-Go vector database that persists to a local
// directory. No external server is required, which makes it the default
// backend for single-host deployments.
//
// chromem-go owns the vector index files; record metadata that mutates
// (access statistics) lives in a parallel JSON sidecar keyed by record ID,
// rewritten atomically on change.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// collectionName is the single chromem collection holding all memories.
const collectionName = "memories"

// sidecarFile is the metadata file name inside the store directory.
const sidecarFile = "records.json"

// Ensure interface compliance at compile time.
var _ memory.VectorStore = (*Store)(nil)

// recordMeta is the mutable per-record metadata kept outside the vector
// index.
type recordMeta struct {
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
	Importance   float64   `json:"importance"`
	Entities     []string  `json:"entities,omitempty"`
}

// Store is a [memory.VectorStore] backed by a persistent chromem-go
// collection. Safe for concurrent use.
type Store struct {
	col  *chromemgo.Collection
	log  *slog.Logger
	path string

	mu   sync.Mutex
	meta map[string]recordMeta
}

// Open opens (or creates) the store under dir. The vector index lives in
// dir/index, the metadata sidecar in dir/records.json. A corrupt sidecar
// degrades to empty metadata with a warning; the affected records keep
// default statistics.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := chromemgo.NewPersistentDB(filepath.Join(dir, "index"), false)
	if err != nil {
		return nil, fmt.Errorf("%w: open vector index: %v", memory.ErrStorageUnavailable, err)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, rejectComputedEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("%w: open collection: %v", memory.ErrStorageUnavailable, err)
	}

	s := &Store{
		col:  col,
		log:  log,
		path: filepath.Join(dir, sidecarFile),
		meta: make(map[string]recordMeta),
	}
	s.loadSidecar()
	return s, nil
}

// rejectComputedEmbeddings is installed as the collection's embedding
// function. Every write path supplies a precomputed vector, so this is only
// reachable through a bug.
func rejectComputedEmbeddings(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chromem store: embeddings must be precomputed by the caller")
}

func (s *Store) loadSidecar() {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return
	case err != nil:
		s.log.Warn("memory metadata sidecar unreadable, using defaults", "path", s.path, "error", err)
		return
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		s.log.Warn("memory metadata sidecar corrupt, using defaults", "path", s.path, "error", err)
		s.meta = make(map[string]recordMeta)
	}
}

// saveSidecarLocked writes the metadata map atomically. Callers hold s.mu.
func (s *Store) saveSidecarLocked() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), sidecarFile+".tmp-*")
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
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Add implements [memory.VectorStore].
func (s *Store) Add(ctx context.Context, rec memory.MemoryRecord) error {
	if rec.ID == uuid.Nil {
		return errors.New("chromem store: record ID must be set")
	}
	if len(rec.Embedding) == 0 {
		return errors.New("chromem store: record embedding must be set")
	}

	err := s.col.AddDocument(ctx, chromemgo.Document{
		ID:        rec.ID.String(),
		Content:   rec.Content,
		Embedding: rec.Embedding,
	})
	if err != nil {
		return fmt.Errorf("%w: add document: %v", memory.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[rec.ID.String()] = recordMeta{
		Content:      rec.Content,
		CreatedAt:    rec.CreatedAt,
		LastAccessed: rec.LastAccessed,
		AccessCount:  rec.AccessCount,
		Importance:   rec.Importance,
		Entities:     rec.Entities,
	}
	if err := s.saveSidecarLocked(); err != nil {
		return fmt.Errorf("%w: %v", memory.ErrStorageUnavailable, err)
	}
	return nil
}

// Search implements [memory.VectorStore]. chromem rejects result counts
// larger than the collection, so topK is clamped to the current size.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, opts ...memory.SearchOption) ([]memory.SearchHit, error) {
	cfg := memory.ApplySearchOptions(opts)

	n := s.col.Count()
	if n == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	results, err := s.col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", memory.ErrStorageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	hits := make([]memory.SearchHit, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < cfg.MinSimilarity {
			continue
		}
		rec := memory.MemoryRecord{Content: r.Content, Embedding: r.Embedding}
		if id, err := uuid.Parse(r.ID); err == nil {
			rec.ID = id
		}
		if m, ok := s.meta[r.ID]; ok {
			rec.CreatedAt = m.CreatedAt
			rec.LastAccessed = m.LastAccessed
			rec.AccessCount = m.AccessCount
			rec.Importance = m.Importance
			rec.Entities = m.Entities
		} else {
			rec.Importance = 1.0
		}
		hits = append(hits, memory.SearchHit{Record: rec, Similarity: sim})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	return hits, nil
}

// TouchAccess implements [memory.VectorStore].
func (s *Store) TouchAccess(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, id := range ids {
		m, ok := s.meta[id]
		if !ok {
			continue
		}
		m.AccessCount++
		m.LastAccessed = now
		s.meta[id] = m
		changed = true
	}
	if !changed {
		return nil
	}
	if err := s.saveSidecarLocked(); err != nil {
		return fmt.Errorf("%w: %v", memory.ErrStorageUnavailable, err)
	}
	return nil
}

// Count implements [memory.VectorStore].
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.col.Count(), nil
}

// Close implements [memory.VectorStore]. chromem persists on every write, so
// Close only flushes the sidecar one last time.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveSidecarLocked(); err != nil {
		return fmt.Errorf("%w: %v", memory.ErrStorageUnavailable, err)
	}
	return nil
}
