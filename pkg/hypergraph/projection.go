package hypergraph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

type projectionTask struct {
	edgeType string
	key      string
}

// ProjectionWorker consumes a bounded in-process channel of pending
// hyperedge ids (populated by WriteHyperedge) and performs the graph
// MERGE. Projection is asynchronous and best-effort: a failure is logged
// and retried with exponential backoff; it never blocks JSONB
// availability.
type ProjectionWorker struct {
	store  *Store
	queue  chan projectionTask
	logger *logrus.Logger
}

// NewProjectionWorker builds a worker with the given channel capacity.
func NewProjectionWorker(store *Store, capacity int, logger *logrus.Logger) *ProjectionWorker {
	if capacity <= 0 {
		capacity = 256
	}
	return &ProjectionWorker{store: store, queue: make(chan projectionTask, capacity), logger: logger}
}

// Enqueue schedules edgeType/key for projection. If the queue is full the
// task is dropped and logged; the ReconciliationJob will pick it back up.
func (w *ProjectionWorker) Enqueue(edgeType, key string) {
	select {
	case w.queue <- projectionTask{edgeType: edgeType, key: key}:
	default:
		w.logger.WithFields(logging.HyperedgeFields("enqueue_projection", edgeType, key, 0).ToLogrus()).
			Warn("projection queue full, dropping task; reconciliation will repair it")
	}
}

// Run drains the queue until ctx is canceled, making up to 3 attempts per
// task with exponential backoff after each failure before giving up and
// logging.
func (w *ProjectionWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.projectWithRetry(ctx, task)
		}
	}
}

func (w *ProjectionWorker) projectWithRetry(ctx context.Context, task projectionTask) {
	backoff := 250 * time.Millisecond
	for attempt := 1; attempt <= 3; attempt++ {
		if err := w.project(ctx, task.edgeType, task.key); err != nil {
			w.logger.WithFields(logging.HyperedgeFields("project", task.edgeType, task.key, 0).ToLogrus()).
				WithError(err).Warn("graph projection attempt failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return
	}
	w.logger.WithFields(logging.HyperedgeFields("project", task.edgeType, task.key, 0).ToLogrus()).
		Error("graph projection exhausted retries; left for reconciliation")
}

// project performs the idempotent MERGE for a single hyperedge. For BCP
// hyperedges it maintains the (:Buyer)-[:HAS_BCP]->(:Hyperedge_BCP)
// -[:FOR_MATERIAL]->(:Material) path named in the store invariant; other
// edge types project a minimal node only.
func (w *ProjectionWorker) project(ctx context.Context, edgeType, key string) error {
	edge, err := w.store.ReadHyperedge(ctx, edgeType, key)
	if err != nil {
		return err
	}
	if edge == nil {
		return nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(edge.Payload, &payload); err != nil {
		return err
	}

	// Unlike Buyer/Material nodes (keyed by slugged free-text name), the
	// hyperedge node is keyed by the hyperedge's own stable identity
	// string directly, so reconciliation's SQL-side lookup ('hyperedge_bcp:'
	// || h.key) stays in lockstep with this projection.
	hyperedgeNodeID := "hyperedge_" + edgeType + ":" + key
	if err := w.store.UpsertNode(ctx, GraphNode{
		NodeID:     hyperedgeNodeID,
		NodeType:   "Hyperedge_" + edgeType,
		Properties: map[string]interface{}{"edge_id": key, "version": edge.Version},
	}); err != nil {
		return err
	}

	if edgeType != "bcp" {
		return nil
	}

	companyName, _ := payload["company_name"].(string)
	if companyName == "" {
		return nil
	}
	buyerNodeID := NodeID("buyer", companyName)
	if err := w.store.UpsertNode(ctx, GraphNode{
		NodeID:     buyerNodeID,
		NodeType:   "Buyer",
		Properties: map[string]interface{}{"company_name": companyName},
	}); err != nil {
		return err
	}
	if err := w.store.UpsertRelationship(ctx, GraphRelationship{
		FromNodeID: buyerNodeID, ToNodeID: hyperedgeNodeID, Relationship: "HAS_BCP",
	}); err != nil {
		return err
	}

	material, _ := payload["material"].(map[string]interface{})
	polymer, _ := material["polymer"].(string)
	if polymer == "" {
		return nil
	}
	materialNodeID := NodeID("material", polymer)
	if err := w.store.UpsertNode(ctx, GraphNode{
		NodeID:     materialNodeID,
		NodeType:   "Material",
		Properties: map[string]interface{}{"polymer": polymer},
	}); err != nil {
		return err
	}
	return w.store.UpsertRelationship(ctx, GraphRelationship{
		FromNodeID: hyperedgeNodeID, ToNodeID: materialNodeID, Relationship: "FOR_MATERIAL",
	})
}
