package hypergraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// GraphNode is a property-graph node: Buyer, Material, Geography,
// Certification, or the central Hyperedge_BCP node carrying the edge id.
type GraphNode struct {
	NodeID     string
	NodeType   string
	Properties map[string]interface{}
}

// GraphRelationship is a directed, typed edge between two nodes.
type GraphRelationship struct {
	FromNodeID   string
	ToNodeID     string
	Relationship string
	Properties   map[string]interface{}
}

// GraphPattern is a small typed query: a start label, optional property
// filters on the start node, and the relationship types a walk may follow.
// It is translated to a single parameterized recursive SQL query over
// graph_nodes/graph_edges — this is not a general Cypher parser.
type GraphPattern struct {
	StartLabel    string
	StartFilters  map[string]string
	Relationships []string // e.g. []string{"HAS_BCP", "FOR_MATERIAL"}; any listed type may be followed at any hop, in any order
	MaxDepth      int
}

// Match is a single row satisfying a GraphPattern query.
type Match struct {
	NodeID   string
	NodeType string
	Depth    int
}

// NodeID returns the deterministic node identity for a node_type/name pair:
// "<type>:<slug>". Repeated projection of the same entity is idempotent by
// construction.
func NodeID(nodeType, name string) string {
	return fmt.Sprintf("%s:%s", strings.ToLower(nodeType), slug(name))
}

// EdgeID returns the deterministic relationship identity.
func EdgeID(edgeType, fromNode, toNode, relationship string) string {
	return fmt.Sprintf("edge:%s:%s:%s:%s", edgeType, fromNode, toNode, strings.ToUpper(relationship))
}

func slug(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, " ", "_")
}

// UpsertNode merges a property-graph node via ON CONFLICT DO UPDATE,
// idempotent MERGE semantics.
func (s *Store) UpsertNode(ctx context.Context, node GraphNode) error {
	props, err := json.Marshal(node.Properties)
	if err != nil {
		return fmt.Errorf("marshal node properties: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO graph_nodes (node_id, node_type, properties, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (node_id)
DO UPDATE SET properties = graph_nodes.properties || EXCLUDED.properties, updated_at = now()`,
		node.NodeID, node.NodeType, props)
	if err != nil {
		return sharederrors.DatabaseError("upsert graph node", err)
	}
	return nil
}

// UpsertRelationship merges a property-graph relationship via ON CONFLICT
// DO UPDATE.
func (s *Store) UpsertRelationship(ctx context.Context, rel GraphRelationship) error {
	props, err := json.Marshal(rel.Properties)
	if err != nil {
		return fmt.Errorf("marshal relationship properties: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO graph_edges (from_node_id, to_node_id, relationship, properties, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (from_node_id, to_node_id, relationship)
DO UPDATE SET properties = graph_edges.properties || EXCLUDED.properties, updated_at = now()`,
		rel.FromNodeID, rel.ToNodeID, rel.Relationship, props)
	if err != nil {
		return sharederrors.DatabaseError("upsert graph relationship", err)
	}
	return nil
}

// QueryGraphPattern runs a recursive walk over graph_edges/graph_nodes
// starting from nodes matching StartLabel + StartFilters, following any of
// the listed relationship types up to MaxDepth hops. The order of
// Relationships is not enforced.
func (s *Store) QueryGraphPattern(ctx context.Context, pattern GraphPattern) ([]Match, error) {
	if len(pattern.Relationships) == 0 {
		return nil, fmt.Errorf("graph pattern requires at least one relationship hop")
	}
	maxDepth := pattern.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 4
	}

	relList := make([]string, len(pattern.Relationships))
	for i, r := range pattern.Relationships {
		relList[i] = "'" + strings.ToUpper(r) + "'"
	}

	args := []interface{}{pattern.StartLabel, maxDepth}
	var startFilters strings.Builder
	for prop, value := range pattern.StartFilters {
		args = append(args, prop, value)
		fmt.Fprintf(&startFilters, " AND n.properties->>($%d::text) = $%d", len(args)-1, len(args))
	}

	query := fmt.Sprintf(`
WITH RECURSIVE walk AS (
  SELECT n.node_id, n.node_type, 0 AS depth
  FROM graph_nodes n
  WHERE n.node_type = $1%s
  UNION ALL
  SELECT ge.to_node_id, gn.node_type, w.depth + 1
  FROM graph_edges ge
  JOIN walk w ON ge.from_node_id = w.node_id
  JOIN graph_nodes gn ON gn.node_id = ge.to_node_id
  WHERE ge.relationship IN (%s) AND w.depth < $2
)
SELECT DISTINCT node_id, node_type, depth FROM walk ORDER BY depth ASC`,
		startFilters.String(), strings.Join(relList, ","))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, sharederrors.DatabaseError("query_graph_pattern", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.NodeID, &m.NodeType, &m.Depth); err != nil {
			return nil, sharederrors.DatabaseError("scan query_graph_pattern row", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
