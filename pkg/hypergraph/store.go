// Package hypergraph is the Hypergraph Store: durable storage of
// hyperedges with dual representation — JSONB for the full payload, a
// pgvector column for semantic search, and a Postgres-backed property
// graph projection for structural queries.
package hypergraph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// Hyperedge is the generic storage unit, as read back from Postgres.
type Hyperedge struct {
	EdgeType  string
	Key       string
	Payload   json.RawMessage
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WriteReceipt confirms a write_hyperedge call and reports whether the
// embedding was generated successfully.
type WriteReceipt struct {
	EdgeType        string
	Key             string
	Version         int
	EmbeddingStored bool
}

// Filters narrows top_k_by_vector / list_by_type queries.
type Filters struct {
	Polymer string
	Region  string
}

// Store is the Hypergraph Store's Postgres-backed implementation.
type Store struct {
	pool       *pgxpool.Pool
	embeddings EmbeddingProvider
	projection *ProjectionWorker
	logger     *logrus.Logger
}

// New builds a Store. projection may be nil, in which case writes are
// never asynchronously projected into the property graph (used by tests
// that only exercise the JSONB/vector paths).
func New(pool *pgxpool.Pool, embeddings EmbeddingProvider, projection *ProjectionWorker, logger *logrus.Logger) *Store {
	return &Store{pool: pool, embeddings: embeddings, projection: projection, logger: logger}
}

// WriteHyperedge upserts by (edge_type, key): atomically writes JSONB,
// generates/updates the embedding, appends to hyperedge_log, and enqueues
// graph projection. A JSONB write failure rolls back the whole write; an
// embedding generation failure stores the row with a null embedding and
// marks it for retry instead of failing the write.
func (s *Store) WriteHyperedge(ctx context.Context, edgeType, key string, payload json.RawMessage, embeddingText, model string) (WriteReceipt, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return WriteReceipt{}, sharederrors.DatabaseError("begin write_hyperedge transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var version int
	err = tx.QueryRow(ctx, `
INSERT INTO hyperedges (edge_type, key, payload, version, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (edge_type, key)
DO UPDATE SET payload = EXCLUDED.payload, version = hyperedges.version + 1, updated_at = now()
RETURNING version`, edgeType, key, payload).Scan(&version)
	if err != nil {
		return WriteReceipt{}, sharederrors.DatabaseError("upsert hyperedge", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO hyperedge_log (edge_type, key, operation, payload, version)
VALUES ($1, $2, 'write', $3, $4)`, edgeType, key, payload, version)
	if err != nil {
		return WriteReceipt{}, sharederrors.DatabaseError("append hyperedge_log", err)
	}

	embeddingStored := false
	if s.embeddings != nil && embeddingText != "" {
		vector, embedErr := s.embeddings.Embed(ctx, embeddingText)
		if embedErr != nil {
			s.logger.WithFields(logging.HyperedgeFields("write_hyperedge", edgeType, key, version).ToLogrus()).
				WithError(embedErr).Warn("embedding generation failed, storing hyperedge without embedding")
			_, _ = tx.Exec(ctx, `
INSERT INTO hyperedge_log (edge_type, key, operation, payload, version)
VALUES ($1, $2, 'embedding_retry_needed', $3, $4)`, edgeType, key, payload, version)
		} else {
			_, err = tx.Exec(ctx, `
INSERT INTO embeddings (edge_type, key, model, embedding)
VALUES ($1, $2, $3, $4)
ON CONFLICT (edge_type, key, model) DO UPDATE SET embedding = EXCLUDED.embedding, created_at = now()`,
				edgeType, key, model, pgvector.NewVector(vector))
			if err != nil {
				return WriteReceipt{}, sharederrors.DatabaseError("upsert embedding", err)
			}
			embeddingStored = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return WriteReceipt{}, sharederrors.DatabaseError("commit write_hyperedge transaction", err)
	}

	if s.projection != nil {
		s.projection.Enqueue(edgeType, key)
	}

	return WriteReceipt{EdgeType: edgeType, Key: key, Version: version, EmbeddingStored: embeddingStored}, nil
}

// ReadHyperedge returns the current JSONB payload, or (nil, nil) when the
// (edge_type, key) pair does not exist. Reads from JSONB are strongly
// consistent.
func (s *Store) ReadHyperedge(ctx context.Context, edgeType, key string) (*Hyperedge, error) {
	row := s.pool.QueryRow(ctx, `
SELECT edge_type, key, payload, version, created_at, updated_at
FROM hyperedges WHERE edge_type = $1 AND key = $2`, edgeType, key)

	var h Hyperedge
	if err := row.Scan(&h.EdgeType, &h.Key, &h.Payload, &h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, sharederrors.DatabaseError("read_hyperedge", err)
	}
	return &h, nil
}

// ListByType lists hyperedges of edgeType, optionally narrowed by polymer
// or region filters extracted from the JSONB payload, paginated.
func (s *Store) ListByType(ctx context.Context, edgeType string, filters Filters, limit, offset int) ([]Hyperedge, error) {
	query := `SELECT edge_type, key, payload, version, created_at, updated_at FROM hyperedges WHERE edge_type = $1`
	args := []interface{}{edgeType}

	if filters.Polymer != "" {
		args = append(args, filters.Polymer)
		query += fmt.Sprintf(" AND payload->'material'->>'polymer' = $%d", len(args))
	}
	if filters.Region != "" {
		args = append(args, filters.Region)
		query += fmt.Sprintf(" AND payload->'geography'->'regions' ? $%d", len(args))
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, sharederrors.DatabaseError("list_by_type", err)
	}
	defer rows.Close()

	var results []Hyperedge
	for rows.Next() {
		var h Hyperedge
		if err := rows.Scan(&h.EdgeType, &h.Key, &h.Payload, &h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, sharederrors.DatabaseError("scan list_by_type row", err)
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
