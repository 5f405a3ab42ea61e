package hypergraph

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// ReconciliationJob periodically scans BCP hyperedges for a missing or
// stale (:Buyer)-[:HAS_BCP]->(:Hyperedge_BCP)-[:FOR_MATERIAL]->(:Material)
// projection and re-enqueues them on the ProjectionWorker, enforcing the
// store's eventual-consistency invariant within a bounded lag.
type ReconciliationJob struct {
	store      *Store
	projection *ProjectionWorker
	interval   time.Duration
	logger     *logrus.Logger
}

// NewReconciliationJob builds a job that runs every interval.
func NewReconciliationJob(store *Store, projection *ProjectionWorker, interval time.Duration, logger *logrus.Logger) *ReconciliationJob {
	return &ReconciliationJob{store: store, projection: projection, interval: interval, logger: logger}
}

// Run executes reconciliation passes on a ticker until ctx is canceled.
func (j *ReconciliationJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.reconcileOnce(ctx); err != nil {
				j.logger.WithFields(logging.Fields{}.Component("reconciliation").ToLogrus()).
					WithError(err).Warn("reconciliation pass failed")
			}
		}
	}
}

// reconcileOnce finds BCP hyperedges whose graph projection is missing,
// older than the hyperedge's updated_at, or lacking its HAS_BCP or
// FOR_MATERIAL relationship, and re-enqueues them.
func (j *ReconciliationJob) reconcileOnce(ctx context.Context) error {
	rows, err := j.store.pool.Query(ctx, `
SELECT h.key
FROM hyperedges h
LEFT JOIN graph_nodes n ON n.node_id = 'hyperedge_bcp:' || h.key
WHERE h.edge_type = 'bcp'
  AND (n.node_id IS NULL OR n.updated_at < h.updated_at
       OR NOT EXISTS (SELECT 1 FROM graph_edges b WHERE b.to_node_id = n.node_id AND b.relationship = 'HAS_BCP')
       OR NOT EXISTS (SELECT 1 FROM graph_edges m WHERE m.from_node_id = n.node_id AND m.relationship = 'FOR_MATERIAL'))`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		stale = append(stale, key)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, key := range stale {
		j.projection.Enqueue("bcp", key)
	}
	if len(stale) > 0 {
		j.logger.WithFields(logging.Fields{}.Component("reconciliation").Count(len(stale)).ToLogrus()).
			Info("re-enqueued stale bcp graph projections")
	}
	return nil
}
