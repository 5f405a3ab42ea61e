package research

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/internal/config"
	"github.com/plasticbrokerage/l9/pkg/hypergraph"
	"github.com/plasticbrokerage/l9/pkg/reasoning"
	"github.com/plasticbrokerage/l9/pkg/worldmodel"
)

// requestsPerWindow bounds each research_client_type to a conservative
// default rate, well under every supported provider's lowest published
// tier, until per-provider overrides are configured.
const requestsPerWindow = 60

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// BuildPipeline wires a Pipeline from application configuration: selects
// the ResearchClient named by cfg.ResearchClient.Type, builds its Redis
// rate limiter and circuit breaker, and attaches store/worldModel/reasoning
// as the integration and reasoning-hook dependencies.
func BuildPipeline(cfg *config.Config, store *hypergraph.Store, wm *worldmodel.Service, reg *reasoning.Registry,
	pgDB *sqlx.DB, redisClient *redis.Client, logger *logrus.Logger) (*Pipeline, error) {

	client, err := NewClient(cfg.ResearchClient.Type, cfg.ResearchClient.APIKey)
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter(redisClient, requestsPerWindow, time.Minute)
	breakers := NewBreakerManager(logger)
	notifier := NewOpsNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel, logger)
	repo := NewJobRepository(pgDB, logger)

	return NewPipeline(PipelineConfig{
		Client:           client,
		Limiter:          limiter,
		Breakers:         breakers,
		Store:            store,
		WorldModel:       wm,
		Reasoning:        reg,
		Notifier:         notifier,
		Repo:             repo,
		Logger:           logger,
		EmbeddingModel:   cfg.Embedding.Model,
		RetrievalTimeout: secondsToDuration(cfg.Timeouts.RetrievalSeconds),
		JobTimeout:       secondsToDuration(cfg.Timeouts.JobSeconds),
	}), nil
}
