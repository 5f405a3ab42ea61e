package schema

import sharedmath "github.com/plasticbrokerage/l9/pkg/shared/math"

// fieldWeight pairs a dotted field path with its contribution to the
// completeness score. Operational importance order: polymer > spec >
// geography > pricing > contamination, shared by every payload kind rather
// than duplicated per type.
type fieldWeight struct {
	path   string
	weight float64
	present func(Payload) bool
}

var bcpFieldWeights = []fieldWeight{
	{"material.polymer", 0.30, func(p Payload) bool { b := p.(*BCP); return b.MaterialInfo.Polymer != "" }},
	{"specification", 0.20, func(p Payload) bool {
		b := p.(*BCP)
		return b.Specification.MFIMin != nil || b.Specification.MFIMax != nil || b.Specification.DensityMin != nil
	}},
	{"geography", 0.20, func(p Payload) bool {
		b := p.(*BCP)
		return len(b.GeographyInfo.Countries) > 0 || len(b.GeographyInfo.Regions) > 0
	}},
	{"pricing_band", 0.15, func(p Payload) bool {
		b := p.(*BCP)
		return b.PricingBand.Min != nil || b.PricingBand.Max != nil
	}},
	{"contamination", 0.10, func(p Payload) bool {
		b := p.(*BCP)
		return b.Contamination.MaxPPM != nil || len(b.Contamination.Banned) > 0
	}},
	{"certifications", 0.05, func(p Payload) bool { b := p.(*BCP); return len(b.Certifications) > 0 }},
}

var supplierOfferingFieldWeights = []fieldWeight{
	{"material.polymer", 0.35, func(p Payload) bool { s := p.(*SupplierOffering); return s.MaterialInfo.Polymer != "" }},
	{"specification_observation", 0.25, func(p Payload) bool {
		s := p.(*SupplierOffering)
		return s.SpecObservation.MFIMin != nil || s.SpecObservation.DensityMin != nil
	}},
	{"location", 0.20, func(p Payload) bool { s := p.(*SupplierOffering); return s.Location != "" }},
	{"contamination_estimate", 0.20, func(p Payload) bool {
		s := p.(*SupplierOffering)
		return s.ContaminationEstimate.MaxPPM != nil
	}},
}

var transactionFieldWeights = []fieldWeight{
	{"material.polymer", 0.30, func(p Payload) bool { t := p.(*TransactionRecord); return t.MaterialInfo.Polymer != "" }},
	{"lane", 0.20, func(p Payload) bool { t := p.(*TransactionRecord); return t.Lane != "" }},
	{"price", 0.30, func(p Payload) bool { t := p.(*TransactionRecord); return t.Price > 0 }},
	{"outcome", 0.20, func(p Payload) bool { t := p.(*TransactionRecord); return t.Outcome.Status != "" }},
}

func weightsFor(payload Payload) []fieldWeight {
	switch payload.(type) {
	case *BCP:
		return bcpFieldWeights
	case *SupplierOffering:
		return supplierOfferingFieldWeights
	case *TransactionRecord:
		return transactionFieldWeights
	default:
		return nil
	}
}

// Completeness returns a score in [0,1] based on presence of required and
// optional fields, weighted by operational importance. A partial payload
// with only required fields present still scores below 0.5 but is valid and
// stored; low completeness is a matching-time signal, not a rejection.
func Completeness(payload Payload) float64 {
	weights := weightsFor(payload)
	if len(weights) == 0 {
		return 0
	}
	var total float64
	for _, w := range weights {
		if w.present(payload) {
			total += w.weight
		}
	}
	return sharedmath.Clamp01(total)
}
