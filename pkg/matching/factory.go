package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/internal/config"
	"github.com/plasticbrokerage/l9/pkg/hypergraph"
	"github.com/plasticbrokerage/l9/pkg/policy"
	"github.com/plasticbrokerage/l9/pkg/reasoning"
	"github.com/plasticbrokerage/l9/pkg/worldmodel"
)

// policyReloadInterval is how often the rule_gates bundle is checked for
// edits once running; short enough that a policy change reaches traffic
// within a few seconds, long enough not to stat the file constantly.
const policyReloadInterval = 5 * time.Second

// BuildEngine wires the rule-gate policy evaluator and the three
// matching-specific reasoning blocks (rule_gate_check, repeat_business_boost,
// explanation_synthesize) onto reg, then constructs the Engine that invokes
// them. llmClient may be nil, in which case explanation_synthesize produces
// only the deterministic structured explanation.
func BuildEngine(ctx context.Context, cfg *config.Config, store *hypergraph.Store, wm *worldmodel.Service, reg *reasoning.Registry, embeddings hypergraph.EmbeddingProvider, llmClient reasoning.LLMClient, logger *logrus.Logger) (*Engine, error) {
	evaluator := policy.NewEvaluator(policy.Config{
		PolicyPath:     cfg.Policy.RuleGatesPath,
		ReloadInterval: policyReloadInterval,
	}, logger)
	if err := evaluator.StartHotReload(ctx); err != nil {
		return nil, fmt.Errorf("start rule gate policy: %w", err)
	}

	if err := reg.Register("rule_gate_check", RuleGateBlock{Evaluator: evaluator}, true, "matching", "deterministic"); err != nil {
		return nil, fmt.Errorf("register rule_gate_check: %w", err)
	}
	if err := reg.Register("repeat_business_boost", reasoning.DeterministicBlock{Fn: repeatBusinessBoostBlock}, true, "matching", "deterministic"); err != nil {
		return nil, fmt.Errorf("register repeat_business_boost: %w", err)
	}
	if err := reg.Register("explanation_synthesize", ExplanationBlock{Client: llmClient}, true, "matching", "llm-optional"); err != nil {
		return nil, fmt.Errorf("register explanation_synthesize: %w", err)
	}

	return NewEngine(EngineConfig{
		Store:          store,
		WorldModel:     wm,
		Reasoning:      reg,
		Embeddings:     embeddings,
		Weights:        cfg.MatchWeights,
		EmbeddingModel: cfg.Embedding.Model,
		TopK:           cfg.TopKDefault,
		Logger:         logger,
	}), nil
}
