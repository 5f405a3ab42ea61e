package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/plasticbrokerage/l9/pkg/schema"
)

// checkGate runs the rule_gate_check reasoning block against one
// candidate, translating the deterministic hard gates (MFI, density,
// contamination, certifications, geography) into a GateOutcome.
func (e *Engine) checkGate(ctx context.Context, offering *schema.SupplierOffering, candidate Candidate) (GateOutcome, error) {
	offeringMap, err := toJSONMap(offering)
	if err != nil {
		return GateOutcome{}, fmt.Errorf("marshal offering for rule gate: %w", err)
	}
	offeringMap["region"] = regionOf(offering.Location)

	candidateMap, err := toJSONMap(candidate.BCP)
	if err != nil {
		return GateOutcome{}, fmt.Errorf("marshal candidate for rule gate: %w", err)
	}

	input, err := json.Marshal(ruleGateInput{Offering: offeringMap, Candidate: candidateMap})
	if err != nil {
		return GateOutcome{}, err
	}

	raw, err := e.reasoning.Invoke(ctx, "rule_gate_check", input)
	if err != nil {
		return GateOutcome{}, fmt.Errorf("invoke rule_gate_check: %w", err)
	}

	var out ruleGateOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return GateOutcome{}, fmt.Errorf("decode rule_gate_check output: %w", err)
	}

	return GateOutcome{Pass: out.Pass, Reasons: out.Reasons}, nil
}

// structuralSignal invokes repeat_business_boost with the count and
// recency of prior transactions between offering's supplier and
// candidate's buyer, sourced directly from the JSONB transaction log
// since transaction hyperedges are not projected into the property
// graph.
func (e *Engine) structuralSignal(ctx context.Context, offering *schema.SupplierOffering, candidate Candidate) (StructuralSignal, error) {
	transactions, err := e.store.TransactionsBetween(ctx, offering.SupplierReference, candidate.BCP.IdentityKey())
	if err != nil {
		return StructuralSignal{}, fmt.Errorf("query prior transactions: %w", err)
	}
	if len(transactions) == 0 {
		return StructuralSignal{}, nil
	}

	daysSinceLast := time.Since(transactions[0].UpdatedAt).Hours() / 24

	input, err := json.Marshal(repeatBusinessInput{
		TransactionCount: len(transactions),
		DaysSinceLast:    daysSinceLast,
	})
	if err != nil {
		return StructuralSignal{}, err
	}

	raw, err := e.reasoning.Invoke(ctx, "repeat_business_boost", input)
	if err != nil {
		return StructuralSignal{}, fmt.Errorf("invoke repeat_business_boost: %w", err)
	}

	var out repeatBusinessOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return StructuralSignal{}, fmt.Errorf("decode repeat_business_boost output: %w", err)
	}

	return StructuralSignal{PriorTransactionCount: len(transactions), RepeatBusinessBoost: out.Boost}, nil
}

// synthesizeExplanation invokes explanation_synthesize to assemble the
// audit trail for a ranked candidate. A failure here degrades to a bare
// structural explanation rather than dropping the candidate, since the
// explanation is presentational, not a ranking input.
func (e *Engine) synthesizeExplanation(ctx context.Context, candidate Candidate, gate GateOutcome, signal StructuralSignal, wm WorldModelSignal, overlap float64) Explanation {
	in := explanationSynthesizeInput{
		CompanyName:    candidate.BCP.CompanyName,
		GatesPassed:    []string{"mfi", "density", "contamination", "certifications", "geography"},
		GateReasons:    gate.Reasons,
		SpecOverlap:    fmt.Sprintf("%.0f%% centered within accepted range", overlap*100),
		HistoricalNote: historicalNote(signal),
		WorldModelNote: fmt.Sprintf("buyer_score=%.2f lane_risk=%.2f product_stability=%.2f", wm.BuyerScore, wm.LaneRisk, wm.ProductStability),
	}

	input, err := json.Marshal(in)
	if err != nil {
		return Explanation{GatesPassed: in.GatesPassed, GateReasons: in.GateReasons, SpecOverlap: in.SpecOverlap, HistoricalNote: in.HistoricalNote, WorldModelNote: in.WorldModelNote}
	}

	raw, err := e.reasoning.Invoke(ctx, "explanation_synthesize", input)
	if err != nil {
		e.logger.WithError(err).Warn("explanation_synthesize failed, using structural explanation only")
		return Explanation{GatesPassed: in.GatesPassed, GateReasons: in.GateReasons, SpecOverlap: in.SpecOverlap, HistoricalNote: in.HistoricalNote, WorldModelNote: in.WorldModelNote}
	}

	var explanation Explanation
	if err := json.Unmarshal(raw, &explanation); err != nil {
		e.logger.WithError(err).Warn("explanation_synthesize returned undecodable output, using structural explanation only")
		return Explanation{GatesPassed: in.GatesPassed, GateReasons: in.GateReasons, SpecOverlap: in.SpecOverlap, HistoricalNote: in.HistoricalNote, WorldModelNote: in.WorldModelNote}
	}
	return explanation
}

func historicalNote(signal StructuralSignal) string {
	if signal.PriorTransactionCount == 0 {
		return "no prior transactions between this supplier and buyer"
	}
	return fmt.Sprintf("%d prior transaction(s), repeat-business boost %.2f", signal.PriorTransactionCount, signal.RepeatBusinessBoost)
}

// toJSONMap round-trips v through JSON to get a plain map, matching the
// shape the Rego bundle and the reasoning block's JSON contract expect.
func toJSONMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// regionOf derives a shipping region from a "City, Region" location
// string, the same convention the World Model Service uses to key lanes.
func regionOf(location string) string {
	parts := strings.SplitN(location, ",", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(location)
}

// buyerRegion prefers a BCP's declared geography regions, falling back to
// deriving one from its buyer location.
func buyerRegion(bcp *schema.BCP) string {
	if len(bcp.GeographyInfo.Regions) > 0 {
		return bcp.GeographyInfo.Regions[0]
	}
	return regionOf(bcp.BuyerLocation)
}
