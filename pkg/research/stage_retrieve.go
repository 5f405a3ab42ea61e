package research

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

const maxRetrievalRetries = 3

// retrieve executes every prompt against p.client, bounded by errgroup
// concurrency, gated by the Redis sliding-window rate limiter, and guarded
// by the per-client-type circuit breaker. A prompt is retried with
// exponential backoff up to maxRetrievalRetries times before being logged
// and skipped, per spec.md §4.4 "failed queries are retried up to N times,
// then logged and skipped".
func (p *Pipeline) retrieve(ctx context.Context, prompts []Prompt) ([]RetrievalBatch, error) {
	batches := make([]RetrievalBatch, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.retrievalConcurrency)
	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			batches[i] = p.retrieveOne(gctx, prompt)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (p *Pipeline) retrieveOne(ctx context.Context, prompt Prompt) RetrievalBatch {
	batch := RetrievalBatch{Query: prompt.Query}

	var lastErr error
	for attempt := 0; attempt <= maxRetrievalRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				batch.Failed = true
				batch.Reason = ctx.Err().Error()
				return batch
			case <-time.After(backoff(attempt)):
			}
		}

		if err := p.limiter.Wait(ctx, p.client.ClientType()); err != nil {
			lastErr = err
			continue
		}

		retrievalCtx, cancel := context.WithTimeout(ctx, p.retrievalTimeout)
		result, err := p.breakers.Execute(p.client.ClientType(), func() (interface{}, error) {
			return p.client.Execute(retrievalCtx, prompt.Text)
		})
		cancel()

		if err == nil {
			if raw, ok := result.(json.RawMessage); ok {
				batch.Raw = raw
			}
			batch.Retries = attempt
			return batch
		}
		lastErr = err
	}

	batch.Failed = true
	batch.Retries = maxRetrievalRetries
	if lastErr != nil {
		batch.Reason = lastErr.Error()
	}
	p.logger.WithFields(logging.WorkflowFields("retrieve", "").Custom("scope", prompt.Query.Scope).ToLogrus()).
		WithError(lastErr).Warn("retrieval failed after retries, skipping query")
	return batch
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	if d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}
