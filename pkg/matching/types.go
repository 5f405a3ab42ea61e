// Package matching is the Matching Engine: given a SupplierOffering, it
// produces a ranked list of candidate BuyerCriteriaProfiles with
// explanations, combining vector candidate generation, deterministic rule
// gates, structural graph enrichment, and World Model signal fusion into
// a single composite score.
package matching

import "github.com/plasticbrokerage/l9/pkg/schema"

// Candidate is a BCP hyperedge surfaced by vector search, carried through
// every subsequent stage of the ranking pipeline.
type Candidate struct {
	Key          string
	BCP          *schema.BCP
	Similarity   float64
	Completeness float64
}

// GateOutcome records a single candidate's rule-gate decision, kept even
// for passing candidates so the explanation can name which gates passed.
type GateOutcome struct {
	Pass    bool
	Reasons []string
}

// StructuralSignal is the structural-enrichment stage's output: repeat
// business between this supplier and candidate buyer, decayed by recency.
type StructuralSignal struct {
	PriorTransactionCount int
	RepeatBusinessBoost   float64
}

// WorldModelSignal is the World Model Service's contribution for one
// candidate.
type WorldModelSignal struct {
	BuyerScore       float64
	LaneRisk         float64
	ProductStability float64
}

// Explanation is the audit trail for one ranked candidate: which gates
// passed, which specs overlapped, historical context, and the World
// Model's contribution.
type Explanation struct {
	GatesPassed    []string
	GateReasons    []string
	SpecOverlap    string
	HistoricalNote string
	WorldModelNote string
	Narrative      string `json:"narrative,omitempty"`
}

// RankedCandidate is one row of a MatchResult: a candidate plus its final
// composite score and explanation.
type RankedCandidate struct {
	CompanyName  string
	BuyerKey     string
	BuyerScore   float64
	Completeness float64
	LaneRisk     float64
	Score        float64
	Explanation  Explanation
}

// GateRejection counts how many candidates a single gate dropped, surfaced
// when every candidate fails rule filtering.
type GateRejection struct {
	Reason string
	Count  int
}

// MatchResult is the Matching Engine's output for one SupplierOffering.
type MatchResult struct {
	Ranked        []RankedCandidate
	Diagnostic    string
	GateRejections []GateRejection
}
