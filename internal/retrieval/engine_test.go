package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
	memmock "github.com/kadonomaro197-cloud/AiD/pkg/memory/mock"
	embmock "github.com/kadonomaro197-cloud/AiD/pkg/provider/embeddings/mock"
)

func makeHit(content string, similarity float64, age time.Duration) memory.SearchHit {
	return memory.SearchHit{
		Record: memory.MemoryRecord{
			ID:         uuid.New(),
			Content:    content,
			CreatedAt:  time.Now().Add(-age),
			Importance: 1.0,
		},
		Similarity: similarity,
	}
}

func newTestEngine(store *memmock.VectorStore) *Engine {
	embed := &embmock.Provider{EmbedResult: []float32{1, 0, 0}, DimensionsValue: 3}
	return New(store, embed, Config{MinScore: 0.4, PreferredScore: 0.4}, nil)
}

func TestRetrieveFiltersAndSorts(t *testing.T) {
	store := &memmock.VectorStore{
		SearchResult: []memory.SearchHit{
			makeHit("weak match", 0.3, time.Hour),
			makeHit("strong match", 0.82, time.Hour),
		},
	}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (0.3 below 0.4 threshold)", len(results))
	}
	if results[0].Record.Content != "strong match" {
		t.Errorf("kept wrong record: %q", results[0].Record.Content)
	}
}

func TestRetrieveDescendingOrder(t *testing.T) {
	store := &memmock.VectorStore{
		SearchResult: []memory.SearchHit{
			makeHit("mid", 0.6, time.Hour),
			makeHit("best", 0.9, time.Hour),
			makeHit("ok", 0.5, time.Hour),
		},
	}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted descending at %d", i)
		}
	}
	if results[0].Record.Content != "best" {
		t.Errorf("first result = %q, want best", results[0].Record.Content)
	}
}

func TestRetrieveTopKTruncation(t *testing.T) {
	var hits []memory.SearchHit
	contents := []string{"alpha fact", "beta fact", "gamma fact", "delta fact"}
	for i, c := range contents {
		hits = append(hits, makeHit(c, 0.9-float64(i)*0.05, time.Hour))
	}
	store := &memmock.VectorStore{SearchResult: hits}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "query", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestRetrieveDedupesNearIdentical(t *testing.T) {
	store := &memmock.VectorStore{
		SearchResult: []memory.SearchHit{
			makeHit("the user's favourite game is Hades", 0.9, time.Hour),
			makeHit("the user's favourite game is Hades!", 0.85, time.Hour),
			makeHit("the user dislikes mushrooms", 0.8, time.Hour),
		},
	}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 after dedup", len(results))
	}
	// The higher-scoring duplicate must be the survivor.
	if results[0].Record.Content != "the user's favourite game is Hades" {
		t.Errorf("dedup kept the lower-scoring duplicate: %q", results[0].Record.Content)
	}
}

func TestRetrieveFallbackThreshold(t *testing.T) {
	// Nothing clears 0.40 but one clears 0.35: the fallback pass keeps it.
	store := &memmock.VectorStore{
		SearchResult: []memory.SearchHit{makeHit("borderline", 0.37, time.Hour)},
	}
	embed := &embmock.Provider{EmbedResult: []float32{1}, DimensionsValue: 1}
	e := New(store, embed, Config{MinScore: 0.35, PreferredScore: 0.40}, nil)

	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 via fallback threshold", len(results))
	}
}

func TestRetrieveTouchesTopResults(t *testing.T) {
	store := &memmock.VectorStore{
		SearchResult: []memory.SearchHit{
			makeHit("first fact", 0.9, time.Hour),
			makeHit("second fact", 0.8, time.Hour),
		},
	}
	e := newTestEngine(store)

	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatal(err)
	}
	if store.TouchCalls != 1 {
		t.Fatalf("TouchAccess called %d times, want 1", store.TouchCalls)
	}
	if len(store.Touched[0]) != len(results) {
		t.Errorf("touched %d ids, want %d", len(store.Touched[0]), len(results))
	}
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	store := &memmock.VectorStore{}
	embed := &embmock.Provider{EmbedErr: errors.New("provider down")}
	e := New(store, embed, Config{}, nil)

	_, err := e.Retrieve(context.Background(), "query", 5)
	if !errors.Is(err, memory.ErrEmbeddingFailure) {
		t.Fatalf("got %v, want ErrEmbeddingFailure", err)
	}
	if store.SearchCalls != 0 {
		t.Error("store searched despite embedding failure")
	}
}

func TestRetrieveStoreFailure(t *testing.T) {
	store := &memmock.VectorStore{SearchErr: memory.ErrStorageUnavailable}
	e := newTestEngine(store)

	_, err := e.Retrieve(context.Background(), "query", 5)
	if !errors.Is(err, memory.ErrStorageUnavailable) {
		t.Fatalf("got %v, want ErrStorageUnavailable", err)
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	e := newTestEngine(&memmock.VectorStore{})
	results, err := e.Retrieve(context.Background(), "query", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results from empty store", len(results))
	}
}

func TestRetrieveZeroTopK(t *testing.T) {
	store := &memmock.VectorStore{SearchResult: []memory.SearchHit{makeHit("x", 0.9, 0)}}
	e := newTestEngine(store)
	results, err := e.Retrieve(context.Background(), "query", 0)
	if err != nil || results != nil {
		t.Fatalf("topK=0: results=%v err=%v, want nil/nil", results, err)
	}
}
