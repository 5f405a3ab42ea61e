// Package research implements the Research DAG: the five-pass pipeline
// (meta-plan -> superprompt -> retrieve -> extract -> integrate) that turns
// a research goal into persisted hyperedges and World Model observations.
package research

import (
	"encoding/json"
	"time"

	"github.com/plasticbrokerage/l9/pkg/hypergraph"
)

// JobSpec is the caller-supplied research goal: domain, polymer, regions,
// depth, and result cap. It is the only input the Meta-Plan stage reads.
type JobSpec struct {
	JobID      string   `json:"job_id"`
	Domain     string   `json:"domain"`
	Polymer    string   `json:"polymer"`
	Regions    []string `json:"regions,omitempty"`
	Depth      int      `json:"depth"`
	MaxResults int      `json:"max_results"`
}

// PlannedQuery is one typed query descriptor produced by the Meta-Plan
// stage: a scoped, depth-bounded retrieval target.
type PlannedQuery struct {
	Scope      string `json:"scope"`
	Polymer    string `json:"polymer"`
	Region     string `json:"region,omitempty"`
	Depth      int    `json:"depth"`
	MaxResults int    `json:"max_results"`
}

// Prompt is one schema-constrained prompt emitted by the Superprompt stage,
// targeting a single PlannedQuery.
type Prompt struct {
	Query Query  `json:"query"`
	Text  string `json:"text"`
}

// Query names the planned query a Prompt was rendered for, by index into
// JobContext.PlannedQueries, so later stages can trace a prompt back to its
// plan entry without re-embedding the whole descriptor.
type Query struct {
	Index int    `json:"index"`
	Scope string `json:"scope"`
}

// RetrievalBatch is the raw, unparsed result of running one Prompt against a
// ResearchClient.
type RetrievalBatch struct {
	Query   Query           `json:"query"`
	Raw     json.RawMessage `json:"raw"`
	Retries int             `json:"retries"`
	Failed  bool            `json:"failed"`
	Reason  string          `json:"reason,omitempty"`
}

// ExtractedPayload is one canonicalized, schema-validated record produced by
// the Extraction stage, tagged with its edge_type/key for integration and
// its completeness score for low-confidence flagging.
type ExtractedPayload struct {
	EdgeType     string          `json:"edge_type"`
	Key          string          `json:"key"`
	Payload      json.RawMessage `json:"payload"`
	Completeness float64         `json:"completeness"`
}

// IntegrationResult summarizes what the Integration stage actually wrote.
type IntegrationResult struct {
	Written []hypergraph.WriteReceipt `json:"written"`
	Failed  []IntegrationFailure      `json:"failed"`
}

// IntegrationFailure records a hyperedge write that failed persistently
// after retry, per spec.md §4.4 "persistent failures are reported in the
// job summary".
type IntegrationFailure struct {
	EdgeType string `json:"edge_type"`
	Key      string `json:"key"`
	Reason   string `json:"reason"`
}

// JobContext is the immutable-per-stage state handoff object: each stage
// reads the context produced by the one before it and returns a new context
// with its own outputs appended. It is JSON-serializable so a job can be
// checkpointed to research_jobs; no code path resumes a job from a
// checkpoint.
type JobContext struct {
	Spec              JobSpec            `json:"spec"`
	PlannedQueries    []PlannedQuery     `json:"planned_queries,omitempty"`
	Prompts           []Prompt           `json:"prompts,omitempty"`
	RetrievalBatches  []RetrievalBatch   `json:"retrieval_batches,omitempty"`
	Payloads          []ExtractedPayload `json:"payloads,omitempty"`
	IntegrationResult *IntegrationResult `json:"integration_result,omitempty"`

	// FailedAt names the stage that aborted the pipeline, empty on success.
	FailedAt string `json:"failed_at,omitempty"`
	// TimedOut reports whether the job's overall deadline was exceeded.
	TimedOut bool `json:"timed_out,omitempty"`
}

// JobSummary is the externally-visible result of a completed (or
// partially-completed) job: counts plus the integration outcome, without
// the full prompt/retrieval payload bulk.
type JobSummary struct {
	JobID            string             `json:"job_id"`
	PlannedQueries   int                `json:"planned_queries"`
	RetrievalBatches int                `json:"retrieval_batches"`
	BCPsWritten      int                `json:"bcps_written"`
	FailedWrites     int                `json:"failed_writes"`
	FailedAt         string             `json:"failed_at,omitempty"`
	TimedOut         bool               `json:"timed_out"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	Integration      *IntegrationResult `json:"integration,omitempty"`
}

func summarize(jobID string, ctx JobContext, started, finished time.Time) JobSummary {
	s := JobSummary{
		JobID:            jobID,
		PlannedQueries:   len(ctx.PlannedQueries),
		RetrievalBatches: len(ctx.RetrievalBatches),
		FailedAt:         ctx.FailedAt,
		TimedOut:         ctx.TimedOut,
		StartedAt:        started,
		FinishedAt:       finished,
		Integration:      ctx.IntegrationResult,
	}
	if ctx.IntegrationResult != nil {
		s.BCPsWritten = len(ctx.IntegrationResult.Written)
		s.FailedWrites = len(ctx.IntegrationResult.Failed)
	}
	return s
}
