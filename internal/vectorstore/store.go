// Package vectorstore is the gateway to the pgvector-backed embedding
// collections. One logical collection exists per event; writes are serialized
// per event with Postgres advisory locks, queries run lock-free.
//
// Expected schema:
//
//	CREATE EXTENSION IF NOT EXISTS vector;
//	CREATE TABLE face_embeddings (
//	    event_id     UUID NOT NULL,
//	    embedding_id TEXT NOT NULL,
//	    embedding    VECTOR(512) NOT NULL,
//	    metadata     JSONB NOT NULL DEFAULT '{}',
//	    document     TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (event_id, embedding_id)
//	);
//	CREATE INDEX ON face_embeddings USING hnsw (embedding vector_cosine_ops);
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facematch/internal/observability"
)

// ErrLockTimeout is returned when the per-event write lock cannot be acquired
// within the configured wait.
var ErrLockTimeout = errors.New("vectorstore: write lock timeout")

const lockPollInterval = 100 * time.Millisecond

// Invalidator is notified after every successful mutation of an event's
// collection. The lexical index cache registers itself here.
type Invalidator interface {
	Invalidate(eventID uuid.UUID)
}

// QueryResult holds similarity-query output as parallel arrays, one entry per
// candidate, nearest first.
type QueryResult struct {
	IDs       []string
	Distances []float64
	Metadatas []Metadata
	Documents []string
}

type Store struct {
	pool         *pgxpool.Pool
	modelVersion string
	lockWait     time.Duration
	invalidator  Invalidator
}

func New(pool *pgxpool.Pool, modelVersion string, lockWait time.Duration) *Store {
	return &Store{
		pool:         pool,
		modelVersion: modelVersion,
		lockWait:     lockWait,
	}
}

// SetInvalidator registers the cache notified on collection mutations.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// Add stores one embedding in the event's collection. The write is serialized
// per event; if the lock cannot be acquired within the bounded wait the call
// fails with ErrLockTimeout. If the lock service itself is unavailable the
// write proceeds unlocked with a warning; availability is preferred over
// strict serialization for this store. The metadata is always stamped with the
// configured model version before persisting.
func (s *Store) Add(ctx context.Context, eventID uuid.UUID, embeddingID string, vector []float32, meta Metadata, document string) error {
	meta.ModelVersion = s.modelVersion
	if err := meta.Validate(); err != nil {
		return err
	}

	unlock, err := s.acquireWriteLock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO face_embeddings (event_id, embedding_id, embedding, metadata, document)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id, embedding_id)
		 DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata, document = EXCLUDED.document`,
		eventID, embeddingID, pgvector.NewVector(vector), meta, document)
	if err != nil {
		return fmt.Errorf("add embedding: %w", err)
	}

	s.invalidate(eventID)
	return nil
}

// Query returns the n nearest candidates by cosine distance, constrained to
// the configured model version so stale-model vectors never mix into results.
// An empty collection yields an empty result, not an error. A failing filtered
// query is retried once without the filter rather than failing the caller.
func (s *Store) Query(ctx context.Context, eventID uuid.UUID, vector []float32, n int, filter Filter) (QueryResult, error) {
	if n <= 0 {
		n = 100
	}

	res, err := s.runQuery(ctx, eventID, vector, n, filter)
	if err != nil && len(filter) > 0 {
		slog.Warn("filtered query failed, retrying unfiltered",
			"event_id", eventID, "error", err)
		observability.FilterFallbacks.Inc()
		res, err = s.runQuery(ctx, eventID, vector, n, nil)
	}
	if err != nil {
		return QueryResult{}, fmt.Errorf("query embeddings: %w", err)
	}
	return res, nil
}

func (s *Store) runQuery(ctx context.Context, eventID uuid.UUID, vector []float32, n int, filter Filter) (QueryResult, error) {
	query := `SELECT embedding_id, embedding <=> $1 AS distance, metadata, document
		FROM face_embeddings
		WHERE event_id = $2 AND metadata->>'model_version' = $3`
	args := []any{pgvector.NewVector(vector), eventID, s.modelVersion}

	if len(filter) > 0 {
		if err := filter.Validate(); err != nil {
			return QueryResult{}, err
		}
		fj, err := filter.jsonb()
		if err != nil {
			return QueryResult{}, fmt.Errorf("encode filter: %w", err)
		}
		query += ` AND metadata @> $4::jsonb`
		args = append(args, fj)
	}

	query += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, n)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return QueryResult{}, err
	}
	defer rows.Close()

	var res QueryResult
	for rows.Next() {
		var (
			id   string
			dist float64
			meta Metadata
			doc  string
		)
		if err := rows.Scan(&id, &dist, &meta, &doc); err != nil {
			return QueryResult{}, fmt.Errorf("scan candidate: %w", err)
		}
		res.IDs = append(res.IDs, id)
		res.Distances = append(res.Distances, dist)
		res.Metadatas = append(res.Metadatas, meta)
		res.Documents = append(res.Documents, doc)
	}
	return res, rows.Err()
}

// GetByIDs retrieves stored vectors by embedding id. Missing ids are silently
// omitted; order is not guaranteed.
func (s *Store) GetByIDs(ctx context.Context, eventID uuid.UUID, ids []string) (map[string][]float32, error) {
	if len(ids) == 0 {
		return map[string][]float32{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT embedding_id, embedding FROM face_embeddings
		 WHERE event_id = $1 AND embedding_id = ANY($2)`,
		eventID, ids)
	if err != nil {
		return nil, fmt.Errorf("get embeddings by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32, len(ids))
	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		out[id] = vec.Slice()
	}
	return out, rows.Err()
}

// AllDocumentTexts returns every embedding id with its stored document for
// lexical index builds, restricted to the current model version.
func (s *Store) AllDocumentTexts(ctx context.Context, eventID uuid.UUID) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding_id, document FROM face_embeddings
		 WHERE event_id = $1 AND metadata->>'model_version' = $2`,
		eventID, s.modelVersion)
	if err != nil {
		return nil, fmt.Errorf("all documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs[id] = text
	}
	return docs, rows.Err()
}

// AllEntries lists every embedding id with its metadata for the event at the
// current model version. Metadata-only (pure text) searches scan this set.
func (s *Store) AllEntries(ctx context.Context, eventID uuid.UUID) ([]string, []Metadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding_id, metadata FROM face_embeddings
		 WHERE event_id = $1 AND metadata->>'model_version' = $2`,
		eventID, s.modelVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("all entries: %w", err)
	}
	defer rows.Close()

	var (
		ids   []string
		metas []Metadata
	)
	for rows.Next() {
		var id string
		var meta Metadata
		if err := rows.Scan(&id, &meta); err != nil {
			return nil, nil, fmt.Errorf("scan entry: %w", err)
		}
		ids = append(ids, id)
		metas = append(metas, meta)
	}
	return ids, metas, rows.Err()
}

// Count returns the live corpus size for the event at the current model
// version. The lexical cache uses it as its staleness signal.
func (s *Store) Count(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_embeddings
		 WHERE event_id = $1 AND metadata->>'model_version' = $2`,
		eventID, s.modelVersion).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return n, nil
}

// Delete removes specific embeddings. Deleting absent ids is not an error.
func (s *Store) Delete(ctx context.Context, eventID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	unlock, err := s.acquireWriteLock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.pool.Exec(ctx,
		`DELETE FROM face_embeddings WHERE event_id = $1 AND embedding_id = ANY($2)`,
		eventID, ids)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	s.invalidate(eventID)
	return nil
}

// DeleteCollection drops the event's entire collection. Idempotent.
func (s *Store) DeleteCollection(ctx context.Context, eventID uuid.UUID) error {
	unlock, err := s.acquireWriteLock(ctx, eventID)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = s.pool.Exec(ctx, `DELETE FROM face_embeddings WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	s.invalidate(eventID)
	return nil
}

func (s *Store) invalidate(eventID uuid.UUID) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(eventID)
	}
}

// acquireWriteLock takes the per-event advisory lock, polling up to the
// configured wait. The lock is session-scoped, so one pool connection is held
// until the returned release function runs. Three outcomes: lock acquired;
// ErrLockTimeout after the bounded wait; or, when the lock machinery itself
// errors, a degraded no-op unlock so the write proceeds unlocked.
func (s *Store) acquireWriteLock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	key := advisoryKey(eventID)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		slog.Warn("write lock unavailable, proceeding unlocked",
			"event_id", eventID, "error", err)
		observability.LockDegraded.Inc()
		return func() {}, nil
	}

	deadline := time.Now().Add(s.lockWait)
	for {
		var locked bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
			conn.Release()
			slog.Warn("write lock unavailable, proceeding unlocked",
				"event_id", eventID, "error", err)
			observability.LockDegraded.Inc()
			return func() {}, nil
		}
		if locked {
			return func() {
				_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
				conn.Release()
			}, nil
		}
		if time.Now().After(deadline) {
			conn.Release()
			observability.LockTimeouts.Inc()
			return nil, fmt.Errorf("event %s: %w", eventID, ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			conn.Release()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// advisoryKey hashes an event id into the int64 keyspace of pg advisory locks.
func advisoryKey(eventID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(eventID[:])
	return int64(h.Sum64())
}
