package research

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/hypergraph"
	"github.com/plasticbrokerage/l9/pkg/reasoning"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
	"github.com/plasticbrokerage/l9/pkg/worldmodel"
)

// Pipeline composes the five research stages with strict ordering, a
// per-job deadline, and context-cancellation checks between stages. It
// holds every external dependency the stages need, so the stage functions
// themselves stay pure with respect to everything but their declared
// inputs and p's fields.
type Pipeline struct {
	client               ResearchClient
	limiter              *RateLimiter
	breakers             *BreakerManager
	store                *hypergraph.Store
	worldModel           *worldmodel.Service
	reasoning            *reasoning.Registry
	notifier             *OpsNotifier
	repo                 *JobRepository
	logger               *logrus.Logger
	embeddingModel       string
	retrievalConcurrency int
	retrievalTimeout     time.Duration
	jobTimeout           time.Duration
}

// PipelineConfig is the constructor-time configuration for a Pipeline.
type PipelineConfig struct {
	Client               ResearchClient
	Limiter              *RateLimiter
	Breakers             *BreakerManager
	Store                *hypergraph.Store
	WorldModel           *worldmodel.Service
	Reasoning            *reasoning.Registry
	Notifier             *OpsNotifier
	Repo                 *JobRepository
	Logger               *logrus.Logger
	EmbeddingModel       string
	RetrievalConcurrency int
	RetrievalTimeout     time.Duration
	JobTimeout           time.Duration
}

// NewPipeline builds a Pipeline, applying sane defaults for any zero-valued
// timeout/concurrency field.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.RetrievalConcurrency <= 0 {
		cfg.RetrievalConcurrency = 4
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 30 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 300 * time.Second
	}
	return &Pipeline{
		client:               cfg.Client,
		limiter:              cfg.Limiter,
		breakers:             cfg.Breakers,
		store:                cfg.Store,
		worldModel:           cfg.WorldModel,
		reasoning:            cfg.Reasoning,
		notifier:             cfg.Notifier,
		repo:                 cfg.Repo,
		logger:               cfg.Logger,
		embeddingModel:       cfg.EmbeddingModel,
		retrievalConcurrency: cfg.RetrievalConcurrency,
		retrievalTimeout:     cfg.RetrievalTimeout,
		jobTimeout:           cfg.JobTimeout,
	}
}

// Run executes the five-pass pipeline against spec under a per-job
// deadline, checkpointing the JobContext to research_jobs after every
// stage so the last completed stage is on record; nothing reads a
// checkpoint back to resume a job after a process restart. A
// stage failure halts the pipeline and returns a partial summary labeled
// with the failure point, per spec.md §4.4's ordering guarantee.
func (p *Pipeline) Run(ctx context.Context, spec JobSpec) JobSummary {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	jobCtx := JobContext{Spec: spec}
	fields := logging.WorkflowFields("research_job", spec.JobID)

	if p.repo != nil {
		if err := p.repo.Create(ctx, spec.JobID, spec); err != nil {
			p.logger.WithFields(fields.ToLogrus()).WithError(err).Warn("failed to create research job row")
		}
	}

	plannedQueries, err := p.metaPlan(ctx, spec)
	if err != nil {
		p.logger.WithFields(fields.ToLogrus()).WithError(err).Error("meta-plan failed, aborting job")
		jobCtx.FailedAt = "meta_plan"
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}
	jobCtx.PlannedQueries = plannedQueries
	p.checkpoint(ctx, spec.JobID, "meta_plan", jobCtx)

	if ctxDone(ctx, &jobCtx) {
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}

	prompts, err := p.superprompt(ctx, plannedQueries)
	if err != nil {
		p.logger.WithFields(fields.ToLogrus()).WithError(err).Error("superprompt failed, aborting job")
		jobCtx.FailedAt = "superprompt"
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}
	jobCtx.Prompts = prompts
	p.checkpoint(ctx, spec.JobID, "superprompt", jobCtx)

	if ctxDone(ctx, &jobCtx) {
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}

	batches, err := p.retrieve(ctx, prompts)
	if err != nil {
		p.logger.WithFields(fields.ToLogrus()).WithError(err).Error("retrieve failed, aborting job")
		jobCtx.FailedAt = "retrieve"
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}
	jobCtx.RetrievalBatches = batches
	p.checkpoint(ctx, spec.JobID, "retrieve", jobCtx)

	if ctxDone(ctx, &jobCtx) {
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}

	payloads, err := p.extract(ctx, batches)
	if err != nil {
		p.logger.WithFields(fields.ToLogrus()).WithError(err).Error("extract failed, aborting job")
		jobCtx.FailedAt = "extract"
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}
	jobCtx.Payloads = payloads
	p.checkpoint(ctx, spec.JobID, "extract", jobCtx)

	integrationResult, err := p.integrate(ctx, payloads)
	if err != nil {
		p.logger.WithFields(fields.ToLogrus()).WithError(err).Error("integrate failed, aborting job")
		jobCtx.FailedAt = "integrate"
		return p.finish(ctx, spec.JobID, jobCtx, started)
	}
	jobCtx.IntegrationResult = integrationResult
	p.checkpoint(ctx, spec.JobID, "integrate", jobCtx)

	return p.finish(ctx, spec.JobID, jobCtx, started)
}

func ctxDone(ctx context.Context, jobCtx *JobContext) bool {
	select {
	case <-ctx.Done():
		jobCtx.TimedOut = true
		return true
	default:
		return false
	}
}

func (p *Pipeline) checkpoint(ctx context.Context, jobID, pass string, jobCtx JobContext) {
	if p.repo == nil {
		return
	}
	if err := p.repo.Checkpoint(ctx, jobID, pass, jobCtx); err != nil {
		p.logger.WithFields(logging.WorkflowFields("checkpoint", jobID).ToLogrus()).
			WithError(err).Warn("failed to checkpoint research job")
	}
}

func (p *Pipeline) finish(ctx context.Context, jobID string, jobCtx JobContext, started time.Time) JobSummary {
	summary := summarize(jobID, jobCtx, started, time.Now())
	if p.repo != nil {
		if err := p.repo.Complete(ctx, jobID, summary, jobCtx); err != nil {
			p.logger.WithFields(logging.WorkflowFields("complete", jobID).ToLogrus()).
				WithError(err).Warn("failed to record research job completion")
		}
	}
	if p.notifier != nil {
		p.notifier.NotifyJobSummary(ctx, summary)
	}
	return summary
}
