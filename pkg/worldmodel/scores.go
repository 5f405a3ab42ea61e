package worldmodel

import sharedmath "github.com/plasticbrokerage/l9/pkg/shared/math"

// smoothingAlpha controls how fast the exponentially-smoothed sub-scores
// (profitability, reliability, repeat-business affinity) track new
// observations. 0.3 favors stability over reactivity: a single bad
// transaction shifts buyer_score by at most 30% of the gap to the new
// observation.
const smoothingAlpha = 0.3

// buyerScore combines profitability, reliability, and repeat-business
// affinity into the single composite score returned by buyer_score().
// Weights and the formula are an Open Question decision; see DESIGN.md.
func buyerScore(agg BuyerAggregate) float64 {
	return sharedmath.Clamp01(0.5*agg.Profitability + 0.3*agg.Reliability + 0.2*agg.RepeatAffinity)
}

// laneRisk combines claim rate, distance penalty, and volume confidence
// into the composite score returned by lane_risk(). A claim rate of 0
// with full volume confidence yields a risk near 0; an under-observed lane
// (low volume confidence) is penalized toward higher apparent risk so thin
// data does not masquerade as a safe lane.
func laneRisk(agg LaneAggregate) float64 {
	claimRate := 0.0
	if agg.ShipmentCount > 0 {
		claimRate = float64(agg.ClaimCount) / float64(agg.ShipmentCount)
	}
	return sharedmath.Clamp01(claimRate*0.6 + agg.DistancePenalty*0.25 + (1-agg.VolumeConfidence)*0.15)
}

// productStability is 1 minus the coefficient of variation of the
// polymer's observed price history, clamped to [0,1]: a perfectly flat
// price series scores 1 (maximally stable), a wildly swinging one scores
// toward 0.
func productStability(agg ProductStabilityAggregate) float64 {
	return sharedmath.Clamp01(1 - sharedmath.CoefficientOfVariation(agg.PriceHistory))
}

// updateProfitability folds a new profitability observation (derived from
// a closed transaction's margin, normalized to [0,1] by the caller) into
// the buyer's running estimate via single exponential smoothing.
func updateProfitability(agg BuyerAggregate, observation float64) BuyerAggregate {
	agg.Profitability = sharedmath.ExponentialSmoothing(agg.Profitability, sharedmath.Clamp01(observation), smoothingAlpha)
	return agg
}

func updateReliability(agg BuyerAggregate, observation float64) BuyerAggregate {
	agg.Reliability = sharedmath.ExponentialSmoothing(agg.Reliability, sharedmath.Clamp01(observation), smoothingAlpha)
	return agg
}

func updateRepeatAffinity(agg BuyerAggregate, observation float64) BuyerAggregate {
	agg.RepeatAffinity = sharedmath.ExponentialSmoothing(agg.RepeatAffinity, sharedmath.Clamp01(observation), smoothingAlpha)
	return agg
}
