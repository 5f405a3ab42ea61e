package matching

import (
	"sort"

	"github.com/plasticbrokerage/l9/internal/config"
	"github.com/plasticbrokerage/l9/pkg/schema"
	sharedmath "github.com/plasticbrokerage/l9/pkg/shared/math"
)

// specOverlapScore measures how centered the offering's observed spec
// values fall within the candidate's acceptance range, in [0,1]. Missing
// observations or an unconstrained gate score neutrally (0.5) rather than
// penalizing a candidate for an offering's incomplete data, matching
// spec.md's "offering with missing specs: use wider tolerance, flag
// low-confidence" edge case.
func specOverlapScore(offering *schema.SupplierOffering, candidate *schema.BCP) float64 {
	var scores []float64

	if candidate.Specification.MFIMin != nil && candidate.Specification.MFIMax != nil && offering.SpecObservation.MFIMin != nil {
		scores = append(scores, centerScore(*offering.SpecObservation.MFIMin, *candidate.Specification.MFIMin, *candidate.Specification.MFIMax))
	}
	if candidate.Specification.DensityMin != nil && candidate.Specification.DensityMax != nil && offering.SpecObservation.DensityMin != nil {
		scores = append(scores, centerScore(*offering.SpecObservation.DensityMin, *candidate.Specification.DensityMin, *candidate.Specification.DensityMax))
	}

	if len(scores) == 0 {
		return 0.5
	}
	return sharedmath.Clamp01(sharedmath.Mean(scores))
}

// centerScore scores 1.0 when value sits at the midpoint of [min, max],
// decaying linearly to 0 at either edge.
func centerScore(value, min, max float64) float64 {
	if max <= min {
		return 0.5
	}
	mid := (min + max) / 2
	halfRange := (max - min) / 2
	distance := value - mid
	if distance < 0 {
		distance = -distance
	}
	return sharedmath.Clamp01(1 - distance/halfRange)
}

// compositeScore implements the weighted sum named in spec.md §4.5: vector
// similarity, rule-fit spec overlap, repeat-business boost, World Model
// buyer_score, and a lane-risk penalty, combined under the configured
// MatchWeights.
func compositeScore(weights config.MatchWeights, similarity, specOverlap, repeatBoost, buyerScore, laneRisk float64) float64 {
	return weights.VectorSimilarity*similarity +
		weights.RuleFit*specOverlap +
		weights.RepeatBusiness*repeatBoost +
		weights.WorldModel*buyerScore -
		weights.LaneRisk*laneRisk
}

// sortRanked orders candidates per spec.md §4.5's tie-break rule: higher
// buyer_score wins; then higher completeness; then lower lane_risk; then
// alphabetical by company_name for determinism. Primary ordering is by
// Score (the composite); the named tie-breaks apply when scores are
// exactly equal, which in practice occurs mostly in tests with synthetic
// candidates.
func sortRanked(ranked []RankedCandidate) {
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.BuyerScore != b.BuyerScore {
			return a.BuyerScore > b.BuyerScore
		}
		if a.Completeness != b.Completeness {
			return a.Completeness > b.Completeness
		}
		if a.LaneRisk != b.LaneRisk {
			return a.LaneRisk < b.LaneRisk
		}
		return a.CompanyName < b.CompanyName
	})
}
