package research

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// strategicDecompositionInput/Output mirror the schema the
// strategic_decomposition reasoning block is registered with: a broad goal
// decomposed into focused sub-scopes.
type strategicDecompositionInput struct {
	Domain  string   `json:"domain"`
	Polymer string   `json:"polymer"`
	Regions []string `json:"regions"`
	Depth   int      `json:"depth"`
}

type strategicDecompositionOutput struct {
	Scopes []string `json:"scopes"`
}

// metaPlan interprets spec into a list of typed, scoped query descriptors.
// When the reasoning registry has a strategic_decomposition block
// registered it is invoked to split a broad domain goal into focused
// sub-scopes; otherwise one query per region (or a single "default" scope
// when no region was given) is planned directly. A strategic_decomposition
// failure is not fatal to the stage — meta-plan falls back to the
// un-decomposed plan, since decomposition is a refinement, not a
// requirement (per spec.md §4.6 "persistent failures are logged and the
// stage continues without the block's contribution").
func (p *Pipeline) metaPlan(ctx context.Context, spec JobSpec) ([]PlannedQuery, error) {
	if spec.Polymer == "" {
		return nil, fmt.Errorf("meta-plan: job spec must name a polymer")
	}
	if spec.MaxResults <= 0 {
		spec.MaxResults = 20
	}

	scopes := regionScopes(spec.Regions)
	decomposed := false
	if p.reasoning != nil {
		if d, err := p.decompose(ctx, spec); err == nil && len(d) > 0 {
			scopes = d
			decomposed = true
		} else if err != nil {
			p.logger.WithFields(logging.WorkflowFields("meta_plan", spec.JobID).ToLogrus()).
				WithError(err).Warn("strategic_decomposition failed, falling back to region-scoped plan")
		}
	}

	queries := make([]PlannedQuery, 0, len(scopes))
	for _, scope := range scopes {
		q := PlannedQuery{
			Scope:      scope,
			Polymer:    spec.Polymer,
			Depth:      spec.Depth,
			MaxResults: spec.MaxResults,
		}
		if !decomposed && len(spec.Regions) > 0 {
			q.Region = scope
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func (p *Pipeline) decompose(ctx context.Context, spec JobSpec) ([]string, error) {
	input, err := json.Marshal(strategicDecompositionInput{
		Domain: spec.Domain, Polymer: spec.Polymer, Regions: spec.Regions, Depth: spec.Depth,
	})
	if err != nil {
		return nil, err
	}
	out, err := p.reasoning.Invoke(ctx, "strategic_decomposition", input)
	if err != nil {
		return nil, err
	}
	var decoded strategicDecompositionOutput
	if err := json.Unmarshal(out, &decoded); err != nil {
		return nil, err
	}
	return decoded.Scopes, nil
}

func regionScopes(regions []string) []string {
	if len(regions) == 0 {
		return []string{"default"}
	}
	return regions
}
