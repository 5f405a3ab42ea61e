package worldmodel

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plasticbrokerage/l9/pkg/schema"
	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// RebuildFromLog recomputes every aggregate from scratch by replaying
// hyperedge_log in recorded_at order through the same ObserveHyperedge /
// ObserveTransaction entry points live writes use — the round-trip law:
// replay and live update are provably the same code path, so a rebuilt
// World Model is byte-for-byte (within smoothed-score tolerance) identical
// to one that observed the same events live.
func (s *Service) RebuildFromLog(ctx context.Context, pool *pgxpool.Pool) error {
	if err := s.repo.truncate(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.counts = emptyCounts()
	s.buyers = map[string]BuyerAggregate{}
	s.lanes = map[string]LaneAggregate{}
	s.productStability = map[string]ProductStabilityAggregate{}
	s.mu.Unlock()

	rows, err := pool.Query(ctx, `
SELECT edge_type, key, payload
FROM hyperedge_log
WHERE operation = 'write'
ORDER BY recorded_at ASC`)
	if err != nil {
		return sharederrors.DatabaseError("read hyperedge_log for rebuild", err)
	}
	defer rows.Close()

	replayed := 0
	for rows.Next() {
		var edgeType, key string
		var rawPayload json.RawMessage
		if err := rows.Scan(&edgeType, &key, &rawPayload); err != nil {
			return sharederrors.DatabaseError("scan hyperedge_log row", err)
		}

		var asMap map[string]interface{}
		if err := json.Unmarshal(rawPayload, &asMap); err != nil {
			s.logger.WithFields(logging.HyperedgeFields("rebuild_from_log", edgeType, key, 0).ToLogrus()).
				WithError(err).Warn("skipping malformed hyperedge_log row during rebuild")
			continue
		}

		if err := s.replayOne(ctx, edgeType, key, asMap); err != nil {
			s.logger.WithFields(logging.HyperedgeFields("rebuild_from_log", edgeType, key, 0).ToLogrus()).
				WithError(err).Warn("skipping row that failed to replay during rebuild")
			continue
		}
		replayed++
	}
	if err := rows.Err(); err != nil {
		return sharederrors.DatabaseError("iterate hyperedge_log for rebuild", err)
	}

	s.logger.WithFields(logging.WorkflowFields("rebuild_from_log", "").ToLogrus()).
		WithField("replayed_rows", replayed).Info("world model rebuild from hyperedge_log complete")
	return nil
}

func (s *Service) replayOne(ctx context.Context, edgeType, key string, raw map[string]interface{}) error {
	switch edgeType {
	case "bcp", "supplier_offering":
		payload, err := schema.Validate(raw, edgeType)
		if err != nil {
			return err
		}
		s.ObserveHyperedge(ctx, edgeType, key, payload)
	case "transaction":
		payload, err := schema.Validate(raw, edgeType)
		if err != nil {
			return err
		}
		tx, ok := payload.(*schema.TransactionRecord)
		if !ok {
			return nil
		}
		s.ObserveTransaction(ctx, tx)
	}
	return nil
}
