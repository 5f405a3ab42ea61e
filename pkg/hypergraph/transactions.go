package hypergraph

import (
	"context"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// TransactionsBetween returns every transaction hyperedge linking
// supplierKey to buyerKey, most recent first. The Matching Engine's
// structural enrichment stage uses this for the repeat-business signal:
// prior TransactionRecords connecting this supplier to this buyer for
// this polymer.
func (s *Store) TransactionsBetween(ctx context.Context, supplierKey, buyerKey string) ([]Hyperedge, error) {
	rows, err := s.pool.Query(ctx, `
SELECT edge_type, key, payload, version, created_at, updated_at
FROM hyperedges
WHERE edge_type = 'transaction'
  AND payload->>'supplier_key' = $1
  AND payload->>'buyer_key' = $2
ORDER BY updated_at DESC`, supplierKey, buyerKey)
	if err != nil {
		return nil, sharederrors.DatabaseError("transactions_between", err)
	}
	defer rows.Close()

	var results []Hyperedge
	for rows.Next() {
		var h Hyperedge
		if err := rows.Scan(&h.EdgeType, &h.Key, &h.Payload, &h.Version, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, sharederrors.DatabaseError("scan transactions_between row", err)
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
