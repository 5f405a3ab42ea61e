package reasoning

import (
	"context"
	"encoding/json"

	"github.com/plasticbrokerage/l9/pkg/schema"
)

// RegisterDefaults wires the two extraction-side deterministic blocks,
// synonym_normalize and completeness_score, onto r. The matching blocks
// (rule_gate_check, repeat_business_boost, explanation_synthesize) are
// registered by pkg/matching's BuildEngine, which holds the dependencies
// (an OPA evaluator, an LLMClient) this package does not. No package
// registers ambiguity_resolve or strategic_decomposition; pkg/research's
// stages fall back without them when the registry has no such block.
func RegisterDefaults(r *Registry) error {
	if err := r.Register("synonym_normalize", DeterministicBlock{Fn: synonymNormalizeBlock}, true, "intake", "domain-safe"); err != nil {
		return err
	}
	if err := r.Register("completeness_score", DeterministicBlock{Fn: completenessScoreBlock}, true, "intake", "domain-safe"); err != nil {
		return err
	}
	return nil
}

type synonymNormalizeInput struct {
	Material string `json:"material"`
}

type synonymNormalizeOutput struct {
	Normalized string `json:"normalized"`
}

func synonymNormalizeBlock(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in synonymNormalizeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	out := synonymNormalizeOutput{Normalized: schema.NormalizeSynonyms(in.Material)}
	return json.Marshal(out)
}

type completenessScoreInput struct {
	EdgeType string                 `json:"edge_type"`
	Payload  map[string]interface{} `json:"payload"`
}

type completenessScoreOutput struct {
	Score float64 `json:"score"`
}

func completenessScoreBlock(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in completenessScoreInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	payload, err := schema.Validate(in.Payload, in.EdgeType)
	if err != nil {
		return nil, err
	}
	out := completenessScoreOutput{Score: schema.Completeness(payload)}
	return json.Marshal(out)
}
