package hypergraph

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// ScoredHyperedge pairs a hyperedge with its vector similarity to the query.
type ScoredHyperedge struct {
	Hyperedge  Hyperedge
	Similarity float64
}

// TopKByVector returns the k hyperedges of edgeType whose embedding is
// closest to queryVector under pgvector's cosine distance operator
// (`<=>`), restricted by filters. Rows with no stored embedding (a
// previously failed embedding generation) are excluded.
func (s *Store) TopKByVector(ctx context.Context, edgeType string, queryVector []float32, model string, k int, filters Filters) ([]ScoredHyperedge, error) {
	query := `
SELECT h.edge_type, h.key, h.payload, h.version, h.created_at, h.updated_at,
       1 - (e.embedding <=> $1) AS similarity
FROM hyperedges h
JOIN embeddings e ON e.edge_type = h.edge_type AND e.key = h.key AND e.model = $2
WHERE h.edge_type = $3`
	args := []interface{}{pgvector.NewVector(queryVector), model, edgeType}

	if filters.Polymer != "" {
		args = append(args, filters.Polymer)
		query += fmt.Sprintf(" AND h.payload->'material'->>'polymer' = $%d", len(args))
	}
	if filters.Region != "" {
		args = append(args, filters.Region)
		query += fmt.Sprintf(" AND h.payload->'geography'->'regions' ? $%d", len(args))
	}

	args = append(args, k)
	query += fmt.Sprintf(" ORDER BY e.embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, sharederrors.DatabaseError("top_k_by_vector", err)
	}
	defer rows.Close()

	var results []ScoredHyperedge
	for rows.Next() {
		var h Hyperedge
		var similarity float64
		if err := rows.Scan(&h.EdgeType, &h.Key, &h.Payload, &h.Version, &h.CreatedAt, &h.UpdatedAt, &similarity); err != nil {
			return nil, sharederrors.DatabaseError("scan top_k_by_vector row", err)
		}
		results = append(results, ScoredHyperedge{Hyperedge: h, Similarity: similarity})
	}
	return results, rows.Err()
}
