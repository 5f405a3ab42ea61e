package worldmodel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// ErrVersionConflict is returned by Repository.save when another writer
// updated the same aggregate between this call's read and write.
var ErrVersionConflict = errors.New("worldmodel: aggregate version conflict")

// Repository persists one JSONB-valued row per aggregate key in
// world_model_aggregates, guarded by optimistic concurrency: save compares
// the version it read against the row's current version and only commits
// if they still match, retrying the read-modify-write on conflict.
type Repository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewRepository builds a Repository over an already-connected sqlx.DB.
func NewRepository(db *sqlx.DB, logger *logrus.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

type aggregateRow struct {
	AggregateType string `db:"aggregate_type"`
	AggregateKey  string `db:"aggregate_key"`
	Snapshot      []byte `db:"snapshot"`
	Version       int    `db:"version"`
}

// load reads a single aggregate row, or (nil, 0, nil) if it does not exist
// yet (the caller should use a zero-valued aggregate in that case).
func (r *Repository) load(ctx context.Context, aggregateType, aggregateKey string, dest interface{}) (version int, err error) {
	var row aggregateRow
	err = r.db.GetContext(ctx, &row, `
SELECT aggregate_type, aggregate_key, snapshot, version
FROM world_model_aggregates
WHERE aggregate_type = $1 AND aggregate_key = $2`, aggregateType, aggregateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, sharederrors.DatabaseError("load world model aggregate", err)
	}
	if err := json.Unmarshal(row.Snapshot, dest); err != nil {
		return 0, sharederrors.DatabaseError("decode world model aggregate", err)
	}
	return row.Version, nil
}

// save upserts the aggregate, bumping version by 1. If expectedVersion no
// longer matches the stored version (another writer raced us), it returns
// ErrVersionConflict and the caller is expected to reload and retry.
func (r *Repository) save(ctx context.Context, aggregateType, aggregateKey string, expectedVersion int, value interface{}) error {
	snapshot, err := json.Marshal(value)
	if err != nil {
		return sharederrors.DatabaseError("encode world model aggregate", err)
	}

	if expectedVersion == 0 {
		result, err := r.db.ExecContext(ctx, `
INSERT INTO world_model_aggregates (aggregate_type, aggregate_key, snapshot, version, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (aggregate_type, aggregate_key) DO NOTHING`,
			aggregateType, aggregateKey, snapshot)
		if err != nil {
			return sharederrors.DatabaseError("insert world model aggregate", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return sharederrors.DatabaseError("check world model insert result", err)
		}
		if affected == 0 {
			// Another writer inserted this row between our load and this
			// insert; the mutation we were about to apply was silently
			// discarded by DO NOTHING, so the caller must reload and retry.
			return ErrVersionConflict
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE world_model_aggregates
SET snapshot = $1, version = version + 1, updated_at = now()
WHERE aggregate_type = $2 AND aggregate_key = $3 AND version = $4`,
		snapshot, aggregateType, aggregateKey, expectedVersion)
	if err != nil {
		return sharederrors.DatabaseError("update world model aggregate", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return sharederrors.DatabaseError("check world model update result", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// allOfType loads every row's decoded snapshot for an aggregate_type,
// keyed by aggregate_key, used to build Snapshot() without per-key reads.
func (r *Repository) allOfType(ctx context.Context, aggregateType string, dest func(key string, raw []byte) error) error {
	rows, err := r.db.QueryxContext(ctx, `
SELECT aggregate_key, snapshot FROM world_model_aggregates WHERE aggregate_type = $1`, aggregateType)
	if err != nil {
		return sharederrors.DatabaseError("list world model aggregates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return sharederrors.DatabaseError("scan world model aggregate row", err)
		}
		if err := dest(key, raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

// truncate deletes every aggregate row, used by rebuild_from_log() to
// guarantee a clean slate before replay.
func (r *Repository) truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM world_model_aggregates`); err != nil {
		return sharederrors.DatabaseError("truncate world model aggregates", err)
	}
	r.logger.WithFields(logging.DatabaseFields("truncate", "world_model_aggregates").ToLogrus()).
		Info("world model aggregates truncated for rebuild")
	return nil
}

func decodeSnapshot(raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return sharederrors.DatabaseError("decode world model aggregate", err)
	}
	return nil
}

const maxSaveRetries = 5

// saveWithRetry retries the optimistic-concurrency save loop up to
// maxSaveRetries times, reloading and re-applying mutate on each conflict.
func saveWithRetry[T any](ctx context.Context, r *Repository, aggregateType, key string, mutate func(current T) T) error {
	var current T
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		version, err := r.load(ctx, aggregateType, key, &current)
		if err != nil {
			return err
		}
		updated := mutate(current)
		err = r.save(ctx, aggregateType, key, version, updated)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		r.logger.WithFields(logging.DatabaseFields("retry_save", "world_model_aggregates").ToLogrus()).
			WithField("attempt", attempt+1).Warn("world model aggregate version conflict, retrying")
	}
	return sharederrors.DatabaseError("save world model aggregate", ErrVersionConflict)
}
