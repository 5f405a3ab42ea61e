package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/plasticbrokerage/l9/internal/config"
	"github.com/plasticbrokerage/l9/pkg/hypergraph"
	"github.com/plasticbrokerage/l9/pkg/reasoning"
	"github.com/plasticbrokerage/l9/pkg/schema"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
	"github.com/plasticbrokerage/l9/pkg/worldmodel"
)

// Engine is the Matching Engine: vector candidate generation, rule gates,
// structural graph enrichment, World Model signal fusion, and composite
// scoring composed into one ranking pass per SupplierOffering.
type Engine struct {
	store          *hypergraph.Store
	worldModel     *worldmodel.Service
	reasoning      *reasoning.Registry
	embeddings     hypergraph.EmbeddingProvider
	weights        config.MatchWeights
	embeddingModel string
	topK           int
	concurrency    int
	logger         *logrus.Logger
}

// EngineConfig is the constructor-time configuration for an Engine.
type EngineConfig struct {
	Store          *hypergraph.Store
	WorldModel     *worldmodel.Service
	Reasoning      *reasoning.Registry
	Embeddings     hypergraph.EmbeddingProvider
	Weights        config.MatchWeights
	EmbeddingModel string
	TopK           int
	Concurrency    int
	Logger         *logrus.Logger
}

// NewEngine builds an Engine, applying sane defaults for zero-valued
// TopK/Concurrency.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Engine{
		store:          cfg.Store,
		worldModel:     cfg.WorldModel,
		reasoning:      cfg.Reasoning,
		embeddings:     cfg.Embeddings,
		weights:        cfg.Weights,
		embeddingModel: cfg.EmbeddingModel,
		topK:           cfg.TopK,
		concurrency:    cfg.Concurrency,
		logger:         cfg.Logger,
	}
}

// Match runs the full ranking pass for offering: candidate generation,
// rule filtering, structural enrichment, World Model signal fusion, and
// composite scoring, returning a tie-broken ordered list with
// explanations. A single candidate's scoring failure does not abort the
// pass; it is excluded and logged, per spec.md §4.5's failure semantics.
func (e *Engine) Match(ctx context.Context, offering *schema.SupplierOffering) (MatchResult, error) {
	vector, err := e.embeddings.Embed(ctx, offeringEmbeddingText(offering))
	if err != nil {
		return MatchResult{}, fmt.Errorf("embed offering: %w", err)
	}

	scored, err := e.store.TopKByVector(ctx, "bcp", vector, e.embeddingModel, e.topK,
		hypergraph.Filters{Polymer: offering.MaterialInfo.Polymer})
	if err != nil {
		return MatchResult{}, fmt.Errorf("candidate generation: %w", err)
	}
	if len(scored) == 0 {
		return MatchResult{Diagnostic: "no BCPs for this polymer"}, nil
	}

	candidates := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		var raw map[string]interface{}
		if err := json.Unmarshal(s.Hyperedge.Payload, &raw); err != nil {
			e.logger.WithError(err).Warn("skipping candidate with unparseable payload")
			continue
		}
		payload, err := schema.Validate(raw, "bcp")
		if err != nil {
			e.logger.WithError(err).Warn("skipping candidate failing schema validation")
			continue
		}
		bcp := payload.(*schema.BCP)
		candidates = append(candidates, Candidate{
			Key:          s.Hyperedge.Key,
			BCP:          bcp,
			Similarity:   s.Similarity,
			Completeness: schema.Completeness(bcp),
		})
	}

	results := make([]*RankedCandidate, len(candidates))
	var rejectionsMu sync.Mutex
	rejections := map[string]int{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			rc, reasons, err := e.scoreCandidate(gctx, offering, candidate)
			if err != nil {
				e.logger.WithFields(logging.WorkflowFields("match_score", candidate.Key).ToLogrus()).
					WithError(err).Warn("candidate scoring failed, excluding from ranking")
				return nil
			}
			if rc == nil {
				rejectionsMu.Lock()
				for _, r := range reasons {
					rejections[r]++
				}
				rejectionsMu.Unlock()
				return nil
			}
			results[i] = rc
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]RankedCandidate, 0, len(results))
	for _, rc := range results {
		if rc != nil {
			ranked = append(ranked, *rc)
		}
	}
	sortRanked(ranked)

	if len(ranked) == 0 {
		return MatchResult{
			Diagnostic:     "all candidates dropped by rule gates",
			GateRejections: gateRejectionsFrom(rejections),
		}, nil
	}

	return MatchResult{Ranked: ranked}, nil
}

// scoreCandidate runs one candidate through the rule gate, structural
// enrichment, World Model signal fusion, composite scoring, and
// explanation synthesis. A nil *RankedCandidate with no error means the
// candidate was dropped by a rule gate (reasons explains why); a non-nil
// error means the candidate could not be scored at all.
func (e *Engine) scoreCandidate(ctx context.Context, offering *schema.SupplierOffering, candidate Candidate) (*RankedCandidate, []string, error) {
	gate, err := e.checkGate(ctx, offering, candidate)
	if err != nil {
		return nil, nil, err
	}
	if !gate.Pass {
		return nil, gate.Reasons, nil
	}

	signal, err := e.structuralSignal(ctx, offering, candidate)
	if err != nil {
		e.logger.WithError(err).Warn("structural enrichment failed, proceeding without repeat-business signal")
		signal = StructuralSignal{}
	}

	buyerKey := candidate.BCP.IdentityKey()
	wm := WorldModelSignal{}
	if e.worldModel != nil {
		wm.BuyerScore = e.worldModel.BuyerScore(candidate.BCP.CompanyName, candidate.BCP.BuyerLocation, candidate.BCP.MaterialInfo.Polymer)
		wm.LaneRisk = e.worldModel.LaneRisk(regionOf(offering.Location), buyerRegion(candidate.BCP))
		wm.ProductStability = e.worldModel.ProductStability(candidate.BCP.MaterialInfo.Polymer)
	}

	overlap := specOverlapScore(offering, candidate.BCP)
	score := compositeScore(e.weights, candidate.Similarity, overlap, signal.RepeatBusinessBoost, wm.BuyerScore, wm.LaneRisk)

	explanation := e.synthesizeExplanation(ctx, candidate, gate, signal, wm, overlap)

	return &RankedCandidate{
		CompanyName:  candidate.BCP.CompanyName,
		BuyerKey:     buyerKey,
		BuyerScore:   wm.BuyerScore,
		Completeness: candidate.Completeness,
		LaneRisk:     wm.LaneRisk,
		Score:        score,
		Explanation:  explanation,
	}, nil, nil
}

func gateRejectionsFrom(counts map[string]int) []GateRejection {
	rejections := make([]GateRejection, 0, len(counts))
	for reason, count := range counts {
		rejections = append(rejections, GateRejection{Reason: reason, Count: count})
	}
	return rejections
}

func offeringEmbeddingText(offering *schema.SupplierOffering) string {
	return offering.SupplierReference + " " + offering.MaterialInfo.Polymer + " " + offering.Location
}
