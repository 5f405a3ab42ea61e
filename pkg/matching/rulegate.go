package matching

import (
	"context"
	"encoding/json"

	"github.com/plasticbrokerage/l9/pkg/policy"
)

// ruleGateInput is rule_gate_check's typed input: raw offering and
// candidate maps, mirroring policy.GateInput's field names so the
// reasoning block's JSON contract and the Rego bundle's input schema stay
// in lockstep.
type ruleGateInput struct {
	Offering  map[string]interface{} `json:"offering"`
	Candidate map[string]interface{} `json:"candidate"`
}

type ruleGateOutput struct {
	Pass     bool     `json:"pass"`
	Reasons  []string `json:"reasons"`
	Degraded bool     `json:"degraded"`
}

// RuleGateBlock adapts a *policy.Evaluator to reasoning.Block, so rule
// filtering is invoked through the registry like every other reasoning
// step rather than called directly — giving it the same tracing and
// exposure-policy treatment.
type RuleGateBlock struct {
	Evaluator *policy.Evaluator
}

// Invoke implements reasoning.Block.
func (b RuleGateBlock) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in ruleGateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}

	result, err := b.Evaluator.Evaluate(ctx, policy.GateInput{Offering: in.Offering, Candidate: in.Candidate})
	if err != nil {
		return nil, err
	}

	return json.Marshal(ruleGateOutput{Pass: result.Pass, Reasons: result.Reasons, Degraded: result.Degraded})
}
