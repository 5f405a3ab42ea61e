package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// JobRepository persists research_jobs rows: one per research job, carrying
// its checkpointed JobContext from the last completed stage while running,
// and its final JobSummary once finished. No method reads a checkpoint
// back to resume a job.
type JobRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewJobRepository builds a JobRepository over an already-connected sqlx.DB.
func NewJobRepository(db *sqlx.DB, logger *logrus.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

// JobRecord is a row of research_jobs, as read back for the job-status
// polling endpoint.
type JobRecord struct {
	JobID       string     `db:"job_id" json:"job_id"`
	Status      string     `db:"status" json:"status"`
	TargetKey   string     `db:"target_key" json:"target_key"`
	CurrentPass *string    `db:"current_pass" json:"current_pass,omitempty"`
	Result      []byte     `db:"result" json:"-"`
	Error       *string    `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Create inserts a new pending job row.
func (r *JobRepository) Create(ctx context.Context, jobID string, spec JobSpec) error {
	encoded, err := json.Marshal(JobContext{Spec: spec})
	if err != nil {
		return sharederrors.DatabaseError("encode job context", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO research_jobs (job_id, status, target_key, result, updated_at)
VALUES ($1, 'pending', $2, $3, now())
ON CONFLICT (job_id) DO NOTHING`, jobID, targetKey(spec), encoded)
	if err != nil {
		return sharederrors.DatabaseError("create research job", err)
	}
	return nil
}

// Checkpoint records the JobContext after a completed stage and advances
// current_pass/status, so a crash mid-job can be diagnosed from the last
// recorded stage.
func (r *JobRepository) Checkpoint(ctx context.Context, jobID, pass string, jobCtx JobContext) error {
	encoded, err := json.Marshal(jobCtx)
	if err != nil {
		return sharederrors.DatabaseError("encode job context checkpoint", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE research_jobs SET status = 'running', current_pass = $1, result = $2, updated_at = now()
WHERE job_id = $3`, pass, encoded, jobID)
	if err != nil {
		return sharederrors.DatabaseError("checkpoint research job", err)
	}
	return nil
}

// Complete records a job's terminal state: completed, failed (at
// jobCtx.FailedAt), or timed_out.
func (r *JobRepository) Complete(ctx context.Context, jobID string, summary JobSummary, jobCtx JobContext) error {
	status := "completed"
	var errMsg *string
	switch {
	case jobCtx.TimedOut:
		status = "timed_out"
	case jobCtx.FailedAt != "":
		status = "failed"
		msg := "aborted at stage " + jobCtx.FailedAt
		errMsg = &msg
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return sharederrors.DatabaseError("encode job summary", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE research_jobs SET status = $1, result = $2, error = $3, updated_at = now()
WHERE job_id = $4`, status, encoded, errMsg, jobID)
	if err != nil {
		return sharederrors.DatabaseError("complete research job", err)
	}
	return nil
}

// Get returns a single job's current record, or (nil, nil) if no job with
// this id exists.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	var rec JobRecord
	err := r.db.GetContext(ctx, &rec, `
SELECT job_id, status, target_key, current_pass, result, error, created_at, updated_at
FROM research_jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sharederrors.DatabaseError("get research job", err)
	}
	return &rec, nil
}

func targetKey(spec JobSpec) string {
	key := spec.Polymer
	if spec.Domain != "" {
		key = spec.Domain + ":" + key
	}
	return key
}
