// Package postgres provides a PostgreSQL-backed long-term memory store using
// the pgvector extension for approximate nearest-neighbour search.
//
// It implements the same [memory.VectorStore] contract as the embedded
// chromem backend and is intended for deployments that already run Postgres.
// [Migrate] installs the extension and schema idempotently; call it on every
// start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close(ctx)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/kadonomaro197-cloud/AiD/pkg/memory"
)

// Ensure interface compliance at compile time.
var _ memory.VectorStore = (*Store)(nil)

// ddlMemories returns the schema DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time; changing it later requires a manual migration.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id             UUID         PRIMARY KEY,
    content        TEXT         NOT NULL,
    embedding      vector(%d)   NOT NULL,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_accessed  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    access_count   INTEGER      NOT NULL DEFAULT 0,
    importance     DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    entities       TEXT[]       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_memories_created_at
    ON memories (created_at);

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the memories table and pgvector extension
// exist. Idempotent and safe to call on every application start.
//
// embeddingDimensions must match the configured embedding model (e.g. 1536
// for OpenAI text-embedding-3-small, 768 for nomic-embed-text).
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlMemories(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Store is a [memory.VectorStore] backed by a pgvector memories table.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, runs [Migrate], and returns the
// store.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", memory.ErrStorageUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", memory.ErrStorageUnavailable, err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", memory.ErrStorageUnavailable, err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool without migrating. Useful for
// tests and callers that manage migrations themselves.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Add implements [memory.VectorStore].
func (s *Store) Add(ctx context.Context, rec memory.MemoryRecord) error {
	const q = `
		INSERT INTO memories
		    (id, content, embedding, created_at, last_accessed, access_count, importance, entities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		rec.Content,
		pgvector.NewVector(rec.Embedding),
		rec.CreatedAt,
		rec.LastAccessed,
		rec.AccessCount,
		rec.Importance,
		rec.Entities,
	)
	if err != nil {
		return fmt.Errorf("%w: add memory: %v", memory.ErrStorageUnavailable, err)
	}
	return nil
}

// Search implements [memory.VectorStore]. Cosine distance via the pgvector
// <=> operator; similarity is reported as 1 - distance.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, opts ...memory.SearchOption) ([]memory.SearchHit, error) {
	cfg := memory.ApplySearchOptions(opts)
	if topK <= 0 {
		return nil, nil
	}

	const q = `
		SELECT id, content, embedding, created_at, last_accessed, access_count, importance, entities,
		       embedding <=> $1 AS distance
		FROM   memories
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search memories: %v", memory.ErrStorageUnavailable, err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SearchHit, error) {
		var (
			hit      memory.SearchHit
			vec      pgvector.Vector
			distance float64
		)
		if err := row.Scan(
			&hit.Record.ID,
			&hit.Record.Content,
			&vec,
			&hit.Record.CreatedAt,
			&hit.Record.LastAccessed,
			&hit.Record.AccessCount,
			&hit.Record.Importance,
			&hit.Record.Entities,
			&distance,
		); err != nil {
			return memory.SearchHit{}, err
		}
		hit.Record.Embedding = vec.Slice()
		hit.Similarity = 1 - distance
		return hit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan rows: %v", memory.ErrStorageUnavailable, err)
	}

	if cfg.MinSimilarity > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Similarity >= cfg.MinSimilarity {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}
	return hits, nil
}

// TouchAccess implements [memory.VectorStore].
func (s *Store) TouchAccess(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `
		UPDATE memories
		SET    access_count = access_count + 1,
		       last_accessed = now()
		WHERE  id = ANY($1::uuid[])`

	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("%w: touch access: %v", memory.ErrStorageUnavailable, err)
	}
	return nil
}

// Count implements [memory.VectorStore].
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count memories: %v", memory.ErrStorageUnavailable, err)
	}
	return n, nil
}

// Close implements [memory.VectorStore].
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
