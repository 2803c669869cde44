// Package mock provides in-memory test doubles for the memory store
// interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// Ensure interface compliance at compile time.
var _ memory.VectorStore = (*VectorStore)(nil)

// VectorStore is a configurable in-memory [memory.VectorStore]. Zero value is
// usable: Add appends, Search returns SearchResult (or the added records with
// similarity 1.0 when SearchResult is nil and no SearchErr is set).
type VectorStore struct {
	mu sync.Mutex

	// SearchResult, when non-nil, is returned verbatim from Search.
	SearchResult []memory.SearchHit

	// Errors returned by the respective methods when set.
	AddErr    error
	SearchErr error
	TouchErr  error
	CountErr  error

	// Recorded state.
	Added        []memory.MemoryRecord
	Touched      [][]string
	SearchCalls  int
	AddCalls     int
	TouchCalls   int
	CountCalls   int
	LastTopK     int
	LastSearched []float32
}

func (s *VectorStore) Add(ctx context.Context, rec memory.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AddCalls++
	if s.AddErr != nil {
		return s.AddErr
	}
	s.Added = append(s.Added, rec)
	return nil
}

func (s *VectorStore) Search(ctx context.Context, embedding []float32, topK int, opts ...memory.SearchOption) ([]memory.SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchCalls++
	s.LastTopK = topK
	s.LastSearched = embedding
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if s.SearchResult != nil {
		if len(s.SearchResult) > topK {
			return s.SearchResult[:topK], nil
		}
		return s.SearchResult, nil
	}
	var hits []memory.SearchHit
	for _, rec := range s.Added {
		if len(hits) == topK {
			break
		}
		hits = append(hits, memory.SearchHit{Record: rec, Similarity: 1.0})
	}
	return hits, nil
}

func (s *VectorStore) TouchAccess(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TouchCalls++
	if s.TouchErr != nil {
		return s.TouchErr
	}
	s.Touched = append(s.Touched, ids)
	return nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CountCalls++
	if s.CountErr != nil {
		return 0, s.CountErr
	}
	return len(s.Added), nil
}

func (s *VectorStore) Close(ctx context.Context) error { return nil }
