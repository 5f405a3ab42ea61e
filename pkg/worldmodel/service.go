package worldmodel

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plasticbrokerage/l9/pkg/schema"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

const (
	aggregateTypeCounts           = "counts"
	aggregateTypeBuyer            = "buyer"
	aggregateTypeLane             = "lane"
	aggregateTypeProductStability = "product_stability"
	countsKey                     = "global"

	// maxPriceHistory bounds how much of a polymer's price history feeds
	// product_stability, keeping CoefficientOfVariation responsive to
	// recent volatility rather than diluted by years of history.
	maxPriceHistory = 60
)

// Service is the World Model: observe_hyperedge/observe_transaction feed
// it, snapshot/buyer_score/lane_risk/product_stability read it. Reads are
// served from an in-memory cache guarded by a RWMutex; writes go through
// Repository's optimistic-concurrency save and then refresh the cache
// entry, so readers never block on a write and a snapshot never blocks a
// writer either — the cyclic-update concern in spec.md §10 is broken by
// always reading a point-in-time snapshot rather than the live store.
type Service struct {
	repo   *Repository
	logger *logrus.Logger

	mu               sync.RWMutex
	counts           countsAggregate
	buyers           map[string]BuyerAggregate
	lanes            map[string]LaneAggregate
	productStability map[string]ProductStabilityAggregate
}

// NewService wires a Service over a Repository, priming the in-memory
// cache from storage.
func NewService(ctx context.Context, repo *Repository, logger *logrus.Logger) (*Service, error) {
	s := &Service{
		repo:             repo,
		logger:           logger,
		buyers:           map[string]BuyerAggregate{},
		lanes:            map[string]LaneAggregate{},
		productStability: map[string]ProductStabilityAggregate{},
	}
	if _, err := s.repo.load(ctx, aggregateTypeCounts, countsKey, &s.counts); err != nil {
		return nil, err
	}
	if s.counts.ByPolymer == nil {
		s.counts = emptyCounts()
	}
	if err := s.repo.allOfType(ctx, aggregateTypeBuyer, func(key string, raw []byte) error {
		var agg BuyerAggregate
		if err := decodeSnapshot(raw, &agg); err != nil {
			return err
		}
		s.buyers[key] = agg
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.repo.allOfType(ctx, aggregateTypeLane, func(key string, raw []byte) error {
		var agg LaneAggregate
		if err := decodeSnapshot(raw, &agg); err != nil {
			return err
		}
		s.lanes[key] = agg
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.repo.allOfType(ctx, aggregateTypeProductStability, func(key string, raw []byte) error {
		var agg ProductStabilityAggregate
		if err := decodeSnapshot(raw, &agg); err != nil {
			return err
		}
		s.productStability[key] = agg
		return nil
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// ObserveHyperedge updates polymer/region counters for a BCP or
// SupplierOffering hyperedge write. Updates are best-effort per spec: a
// storage failure is logged and does not fail the caller's write path,
// since the hyperedge log remains the source of truth and
// RebuildFromLog can always repair a missed update.
func (s *Service) ObserveHyperedge(ctx context.Context, edgeType, key string, payload schema.Payload) {
	polymer, region := extractPolymerRegion(edgeType, payload)
	if err := saveWithRetry(ctx, s.repo, aggregateTypeCounts, countsKey, func(current countsAggregate) countsAggregate {
		if current.ByPolymer == nil {
			current = emptyCounts()
		}
		return current.observe(edgeType+":"+key, polymer, region)
	}); err != nil {
		s.logger.WithFields(logging.HyperedgeFields("observe_hyperedge", edgeType, key, 0).ToLogrus()).
			WithError(err).Warn("world model counts update failed; will self-heal on rebuild_from_log")
		return
	}

	s.mu.Lock()
	s.counts = s.counts.observe(edgeType+":"+key, polymer, region)
	s.mu.Unlock()
}

func extractPolymerRegion(edgeType string, payload schema.Payload) (polymer, region string) {
	switch p := payload.(type) {
	case *schema.BCP:
		polymer = p.MaterialInfo.Polymer
		if len(p.GeographyInfo.Regions) > 0 {
			region = p.GeographyInfo.Regions[0]
		}
	case *schema.SupplierOffering:
		polymer = p.MaterialInfo.Polymer
		region = regionFromLocation(p.Location)
	}
	return polymer, region
}

func regionFromLocation(location string) string {
	parts := strings.SplitN(location, ",", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(location)
}

// ObserveTransaction updates the buyer_score inputs (profitability,
// reliability, repeat affinity) and lane_risk inputs from a closed
// TransactionRecord, and folds the price into the polymer's rolling price
// history for product_stability. No supplier-side score is kept;
// tx.SupplierKey is not read.
func (s *Service) ObserveTransaction(ctx context.Context, tx *schema.TransactionRecord) {
	buyerObservation := transactionOutcomeScore(tx.Outcome.Status)

	if err := saveWithRetry(ctx, s.repo, aggregateTypeBuyer, tx.BuyerKey, func(current BuyerAggregate) BuyerAggregate {
		current.Key = tx.BuyerKey
		current = updateProfitability(current, buyerObservation)
		current = updateReliability(current, buyerObservation)
		repeatObservation := repeatAffinityObservation(current.ObservationCount + 1)
		current = updateRepeatAffinity(current, repeatObservation)
		current.ObservationCount++
		current.LastObservedAt = tx.ClosedAt
		return current
	}); err != nil {
		s.logger.WithFields(logging.WorkflowFields("observe_transaction", tx.TransactionID).ToLogrus()).
			WithError(err).Warn("world model buyer aggregate update failed; will self-heal on rebuild_from_log")
	} else {
		s.mu.Lock()
		agg := s.buyers[tx.BuyerKey]
		agg.Key = tx.BuyerKey
		agg = updateProfitability(agg, buyerObservation)
		agg = updateReliability(agg, buyerObservation)
		agg = updateRepeatAffinity(agg, repeatAffinityObservation(agg.ObservationCount+1))
		agg.ObservationCount++
		agg.LastObservedAt = tx.ClosedAt
		s.buyers[tx.BuyerKey] = agg
		s.mu.Unlock()
	}

	if tx.Lane != "" {
		claimed := tx.Outcome.Status != "completed"
		if err := saveWithRetry(ctx, s.repo, aggregateTypeLane, tx.Lane, func(current LaneAggregate) LaneAggregate {
			current.Key = tx.Lane
			current.ShipmentCount++
			if claimed {
				current.ClaimCount++
			}
			current.VolumeConfidence = volumeConfidence(current.ShipmentCount)
			current.LastObservedAt = tx.ClosedAt
			return current
		}); err != nil {
			s.logger.WithFields(logging.WorkflowFields("observe_transaction_lane", tx.TransactionID).ToLogrus()).
				WithError(err).Warn("world model lane aggregate update failed; will self-heal on rebuild_from_log")
		} else {
			s.mu.Lock()
			agg := s.lanes[tx.Lane]
			agg.Key = tx.Lane
			agg.ShipmentCount++
			if claimed {
				agg.ClaimCount++
			}
			agg.VolumeConfidence = volumeConfidence(agg.ShipmentCount)
			agg.LastObservedAt = tx.ClosedAt
			s.lanes[tx.Lane] = agg
			s.mu.Unlock()
		}
	}

	if tx.Price > 0 && tx.MaterialInfo.Polymer != "" {
		polymer := tx.MaterialInfo.Polymer
		if err := saveWithRetry(ctx, s.repo, aggregateTypeProductStability, polymer, func(current ProductStabilityAggregate) ProductStabilityAggregate {
			current.Key = polymer
			current.PriceHistory = appendBounded(current.PriceHistory, tx.Price, maxPriceHistory)
			current.LastObservedAt = tx.ClosedAt
			return current
		}); err != nil {
			s.logger.WithFields(logging.WorkflowFields("observe_transaction_price", tx.TransactionID).ToLogrus()).
				WithError(err).Warn("world model product stability update failed; will self-heal on rebuild_from_log")
		} else {
			s.mu.Lock()
			agg := s.productStability[polymer]
			agg.Key = polymer
			agg.PriceHistory = appendBounded(agg.PriceHistory, tx.Price, maxPriceHistory)
			agg.LastObservedAt = tx.ClosedAt
			s.productStability[polymer] = agg
			s.mu.Unlock()
		}
	}
}

func transactionOutcomeScore(status string) float64 {
	switch status {
	case "completed":
		return 1.0
	case "claimed":
		return 0.2
	case "disputed":
		return 0.0
	default:
		return 0.5
	}
}

// repeatAffinityObservation grows toward 1 as a buyer accumulates
// transactions, saturating at 10 observed deals.
func repeatAffinityObservation(observationCount int) float64 {
	if observationCount >= 10 {
		return 1.0
	}
	return float64(observationCount) / 10.0
}

// volumeConfidence grows toward 1 as a lane accumulates shipments,
// saturating at 20 observed shipments — enough to distinguish a
// one-off lane from an established one.
func volumeConfidence(shipmentCount int) float64 {
	if shipmentCount >= 20 {
		return 1.0
	}
	return float64(shipmentCount) / 20.0
}

func appendBounded(history []float64, value float64, max int) []float64 {
	history = append(history, value)
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

// SetLaneDistancePenalty records a lane's normalized distance penalty
// ([0,1], 0 = shortest lane in the network). Distance is not carried on
// TransactionRecord, so callers (typically the Matching Engine, from its
// graph-derived lane geometry) set it out of band from ObserveTransaction.
func (s *Service) SetLaneDistancePenalty(ctx context.Context, originRegion, destRegion string, penalty float64) error {
	key := laneKey(originRegion, destRegion)
	if err := saveWithRetry(ctx, s.repo, aggregateTypeLane, key, func(current LaneAggregate) LaneAggregate {
		current.Key = key
		current.DistancePenalty = penalty
		return current
	}); err != nil {
		return err
	}
	s.mu.Lock()
	agg := s.lanes[key]
	agg.Key = key
	agg.DistancePenalty = penalty
	s.lanes[key] = agg
	s.mu.Unlock()
	return nil
}

// Snapshot returns a read-optimized copy of current aggregates, safe to
// hold across a matching pass without blocking concurrent writers.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := emptySnapshot()
	for k, v := range s.counts.ByPolymer {
		snap.ByPolymer[k] = v
	}
	for k, v := range s.counts.ByRegion {
		snap.ByRegion[k] = v
	}
	for k, v := range s.buyers {
		snap.Buyers[k] = v
	}
	for k, v := range s.lanes {
		snap.Lanes[k] = v
	}
	for k, v := range s.productStability {
		snap.ProductStability[k] = v
	}
	snap.GeneratedAt = time.Now()
	return snap
}

// BuyerScore returns the composite buyer_score for company/location/polymer,
// or 0 if the buyer has never been observed.
func (s *Service) BuyerScore(companyName, buyerLocation, polymer string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buyerScore(s.buyers[buyerKey(companyName, buyerLocation, polymer)])
}

// LaneRisk returns the composite lane_risk score for an origin/destination
// region pair. A lane that has never been observed scores 0.15, the
// zero-volume-confidence term of laneRisk.
func (s *Service) LaneRisk(originRegion, destRegion string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return laneRisk(s.lanes[laneKey(originRegion, destRegion)])
}

// ProductStability returns the composite product_stability score for a
// polymer, or 0 if no price history has been observed.
func (s *Service) ProductStability(polymer string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agg := s.productStability[polymer]
	if len(agg.PriceHistory) == 0 {
		return 0
	}
	return productStability(agg)
}
