// Package worldmodel maintains the "long-term memory" of the system:
// aggregate statistics and derived scores computed from hyperedge writes
// and transaction closures. Every mutation flows through observe_hyperedge
// or observe_transaction, so the hyperedge log remains the single source
// of truth and rebuild_from_log recomputes this state, with one exception:
// lane distance penalties are written out of band by
// SetLaneDistancePenalty, are not in the log, and are lost by a rebuild.
package worldmodel

import "time"

// BuyerAggregate tracks the running inputs behind a single buyer's
// composite buyer_score, keyed by company_name|buyer_location|polymer.
type BuyerAggregate struct {
	Key              string    `json:"key"`
	Profitability    float64   `json:"profitability"`
	Reliability      float64   `json:"reliability"`
	RepeatAffinity   float64   `json:"repeat_affinity"`
	ObservationCount int       `json:"observation_count"`
	LastObservedAt   time.Time `json:"last_observed_at"`
}

// LaneAggregate tracks the running inputs behind a shipping lane's
// lane_risk score, keyed by origin_region|dest_region.
type LaneAggregate struct {
	Key              string    `json:"key"`
	ClaimCount       int       `json:"claim_count"`
	ShipmentCount    int       `json:"shipment_count"`
	DistancePenalty  float64   `json:"distance_penalty"`
	VolumeConfidence float64   `json:"volume_confidence"`
	LastObservedAt   time.Time `json:"last_observed_at"`
}

// ProductStabilityAggregate tracks the rolling price history behind a
// polymer's product_stability score.
type ProductStabilityAggregate struct {
	Key            string    `json:"key"`
	PriceHistory   []float64 `json:"price_history"`
	LastObservedAt time.Time `json:"last_observed_at"`
}

// Snapshot is the read-optimized view returned by Service.Snapshot: plain
// tallies of distinct hyperedge keys seen per polymer/region, plus the
// per-key score aggregates, deduplicated so replay never double-counts.
type Snapshot struct {
	ByPolymer        map[string]int                       `json:"by_polymer"`
	ByRegion         map[string]int                        `json:"by_region"`
	Buyers           map[string]BuyerAggregate              `json:"buyers"`
	Lanes            map[string]LaneAggregate                `json:"lanes"`
	ProductStability map[string]ProductStabilityAggregate  `json:"product_stability"`
	GeneratedAt      time.Time                              `json:"generated_at"`
}

func emptySnapshot() Snapshot {
	return Snapshot{
		ByPolymer:        map[string]int{},
		ByRegion:         map[string]int{},
		Buyers:           map[string]BuyerAggregate{},
		Lanes:            map[string]LaneAggregate{},
		ProductStability: map[string]ProductStabilityAggregate{},
	}
}

// buyerKey matches the hyperedge identity convention used by pkg/schema's
// BCP.IdentityKey(): "CompanyName|BuyerLocation|Polymer".
func buyerKey(companyName, buyerLocation, polymer string) string {
	return companyName + "|" + buyerLocation + "|" + polymer
}

// laneKey identifies a shipping lane by origin/destination region pair.
func laneKey(originRegion, destRegion string) string {
	return originRegion + "|" + destRegion
}
