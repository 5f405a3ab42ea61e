package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/plasticbrokerage/l9/pkg/reasoning"
)

// repeatBusinessHalfLifeDays is the number of days after which a prior
// transaction's contribution to the boost has decayed by half.
const repeatBusinessHalfLifeDays = 180.0

type repeatBusinessInput struct {
	TransactionCount int     `json:"transaction_count"`
	DaysSinceLast    float64 `json:"days_since_last"`
}

type repeatBusinessOutput struct {
	Boost float64 `json:"boost"`
}

// repeatBusinessBoostBlock implements the repeat_business_boost
// deterministic reasoning block: a transaction count scaled by an
// exponential recency decay, clamped to [0,1] so it composes cleanly with
// the rest of the weighted score.
func repeatBusinessBoostBlock(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in repeatBusinessInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}

	boost := repeatBusinessBoost(in.TransactionCount, in.DaysSinceLast)
	return json.Marshal(repeatBusinessOutput{Boost: boost})
}

func repeatBusinessBoost(count int, daysSinceLast float64) float64 {
	if count <= 0 {
		return 0
	}
	decay := math.Exp(-daysSinceLast / repeatBusinessHalfLifeDays * math.Ln2)
	countFactor := 1 - math.Exp(-float64(count)/3.0)
	boost := countFactor * decay
	if boost > 1 {
		return 1
	}
	if boost < 0 {
		return 0
	}
	return boost
}

type explanationSynthesizeInput struct {
	CompanyName    string   `json:"company_name"`
	GatesPassed    []string `json:"gates_passed"`
	GateReasons    []string `json:"gate_reasons"`
	SpecOverlap    string   `json:"spec_overlap"`
	HistoricalNote string   `json:"historical_note"`
	WorldModelNote string   `json:"world_model_note"`
}

// ExplanationBlock implements explanation_synthesize: it always assembles
// the structured audit trail deterministically, and optionally asks an
// LLMClient for a one-line natural-language narrative on top. Client may
// be nil, in which case only the structured fields are populated — an LLM
// failure here is never fatal to a ranked result, matching the rest of
// this module's pattern of degrading gracefully when an optional
// reasoning step is unavailable.
type ExplanationBlock struct {
	Client reasoning.LLMClient
}

// Invoke implements reasoning.Block.
func (b ExplanationBlock) Invoke(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in explanationSynthesizeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}

	explanation := Explanation{
		GatesPassed:    in.GatesPassed,
		GateReasons:    in.GateReasons,
		SpecOverlap:    in.SpecOverlap,
		HistoricalNote: in.HistoricalNote,
		WorldModelNote: in.WorldModelNote,
	}

	if b.Client != nil {
		prompt := narrativePrompt(in)
		if narrative, err := b.Client.Complete(ctx, prompt); err == nil {
			explanation.Narrative = strings.TrimSpace(narrative)
		}
	}

	return json.Marshal(explanation)
}

func narrativePrompt(in explanationSynthesizeInput) string {
	return fmt.Sprintf(
		"In one sentence, explain why %s is a good match: spec overlap %q, history %q, world model %q.",
		in.CompanyName, in.SpecOverlap, in.HistoricalNote, in.WorldModelNote)
}
