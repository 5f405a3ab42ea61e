// Package schema is the Canonical Schema Layer: it validates and normalizes
// raw retrieval/intake data into the three canonical payload kinds
// (BuyerCriteriaProfile, SupplierOffering, TransactionRecord), computes
// completeness scores, and converts between the JSON/YAML external
// representations and the typed internal objects a Hyperedge carries.
package schema

import "time"

// Payload is implemented by every canonical hyperedge payload kind so
// to_hyperedge and the rest of the Hypergraph Store stay generic across
// BCP / SupplierOffering / TransactionRecord.
type Payload interface {
	// EdgeType names the hyperedge partition this payload belongs to:
	// "bcp", "supplier_offering", or "transaction".
	EdgeType() string
	// IdentityKey is the stable string identity used as the hyperedge's
	// key, e.g. "Padnos|Wyoming,MI|HDPE".
	IdentityKey() string
}

// Material describes a polymer's form, processing, and application facets.
type Material struct {
	Polymer      string   `yaml:"polymer" json:"polymer" validate:"required"`
	Forms        []string `yaml:"forms,omitempty" json:"forms,omitempty"`
	Colors       []string `yaml:"colors,omitempty" json:"colors,omitempty"`
	Applications []string `yaml:"applications,omitempty" json:"applications,omitempty"`
	Process      string   `yaml:"process,omitempty" json:"process,omitempty"`
}

// Specification holds numeric acceptance ranges for a polymer grade.
type Specification struct {
	MFIMin     *float64 `yaml:"mfi_min,omitempty" json:"mfi_min,omitempty"`
	MFIMax     *float64 `yaml:"mfi_max,omitempty" json:"mfi_max,omitempty"`
	DensityMin *float64 `yaml:"density_min,omitempty" json:"density_min,omitempty"`
	DensityMax *float64 `yaml:"density_max,omitempty" json:"density_max,omitempty"`
	AshMax     *float64 `yaml:"ash_max,omitempty" json:"ash_max,omitempty"`
	FillerTypes []string `yaml:"filler_types,omitempty" json:"filler_types,omitempty"`
}

// Contamination describes acceptance limits and disqualifying contaminants.
type Contamination struct {
	MaxPPM   *float64 `yaml:"max_ppm,omitempty" json:"max_ppm,omitempty"`
	Banned   []string `yaml:"banned,omitempty" json:"banned,omitempty"`
}

// PricingBand is a buyer's acceptable price range for a material.
type PricingBand struct {
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max      *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Currency string   `yaml:"currency,omitempty" json:"currency,omitempty"`
	Incoterm string   `yaml:"incoterm,omitempty" json:"incoterm,omitempty"`
}

// Geography constrains where a buyer sources from or a supplier ships to.
type Geography struct {
	Countries []string `yaml:"countries,omitempty" json:"countries,omitempty"`
	States    []string `yaml:"states,omitempty" json:"states,omitempty"`
	Regions   []string `yaml:"regions,omitempty" json:"regions,omitempty"`
	Ports     []string `yaml:"ports,omitempty" json:"ports,omitempty"`
}

// Logistics describes lane/volume constraints.
type Logistics struct {
	MinLoadLbs      *float64 `yaml:"min_load_lbs,omitempty" json:"min_load_lbs,omitempty"`
	MaxLaneDistance *float64 `yaml:"max_lane_distance,omitempty" json:"max_lane_distance,omitempty"`
}

// Metadata tracks provenance and versioning common to every payload kind.
type Metadata struct {
	Version           int       `yaml:"version" json:"version"`
	Source            string    `yaml:"source,omitempty" json:"source,omitempty"`
	CompletenessScore float64   `yaml:"completeness_score" json:"completeness_score"`
	UpdatedAt         time.Time `yaml:"updated_at" json:"updated_at"`
}

// BCP is a canonical buyer fact at (company, location, polymer_family)
// granularity.
type BCP struct {
	CompanyName    string          `yaml:"company_name" json:"company_name" validate:"required"`
	BuyerLocation  string          `yaml:"buyer_location" json:"buyer_location" validate:"required"`
	Segments       []string        `yaml:"segments,omitempty" json:"segments,omitempty"`
	ExternalIDs    map[string]string `yaml:"external_ids,omitempty" json:"external_ids,omitempty"`
	MaterialInfo   Material        `yaml:"material" json:"material" validate:"required"`
	Specification  Specification   `yaml:"specification,omitempty" json:"specification,omitempty"`
	Contamination  Contamination   `yaml:"contamination,omitempty" json:"contamination,omitempty"`
	Certifications []string        `yaml:"certifications,omitempty" json:"certifications,omitempty"`
	PricingBand    PricingBand     `yaml:"pricing_band,omitempty" json:"pricing_band,omitempty"`
	GeographyInfo  Geography       `yaml:"geography,omitempty" json:"geography,omitempty"`
	LogisticsInfo  Logistics       `yaml:"logistics,omitempty" json:"logistics,omitempty"`
	Meta           Metadata        `yaml:"metadata" json:"metadata"`
}

// EdgeType implements Payload.
func (b *BCP) EdgeType() string { return "bcp" }

// IdentityKey implements Payload: "<company>|<location>|<polymer>".
func (b *BCP) IdentityKey() string {
	return b.CompanyName + "|" + b.BuyerLocation + "|" + b.MaterialInfo.Polymer
}

// SupplierOffering is a single supplier intake event.
type SupplierOffering struct {
	SupplierEdgeID       string    `yaml:"supplier_edge_id" json:"supplier_edge_id" validate:"required"`
	SupplierReference    string    `yaml:"supplier_reference" json:"supplier_reference" validate:"required"`
	MaterialInfo         Material  `yaml:"material" json:"material" validate:"required"`
	ContaminationEstimate Contamination `yaml:"contamination_estimate,omitempty" json:"contamination_estimate,omitempty"`
	SpecObservation      Specification `yaml:"specification_observation,omitempty" json:"specification_observation,omitempty"`
	Certifications       []string  `yaml:"certifications,omitempty" json:"certifications,omitempty"`
	Location             string    `yaml:"location" json:"location" validate:"required"`
	Timestamp             time.Time `yaml:"timestamp" json:"timestamp"`
	Meta                  Metadata  `yaml:"metadata" json:"metadata"`
}

// EdgeType implements Payload.
func (s *SupplierOffering) EdgeType() string { return "supplier_offering" }

// IdentityKey implements Payload: intake events are keyed by their own id,
// since one intake yields exactly one SupplierOffering hyperedge.
func (s *SupplierOffering) IdentityKey() string { return s.SupplierEdgeID }

// TransactionOutcome is the closed-deal result.
type TransactionOutcome struct {
	Status       string   `yaml:"status" json:"status"`
	ClaimNotes   string   `yaml:"claim_notes,omitempty" json:"claim_notes,omitempty"`
	QualityNotes string   `yaml:"quality_notes,omitempty" json:"quality_notes,omitempty"`
}

// TransactionRecord is an immutable closed-deal hyperedge.
type TransactionRecord struct {
	TransactionID string              `yaml:"transaction_id" json:"transaction_id" validate:"required"`
	SupplierKey   string              `yaml:"supplier_key" json:"supplier_key" validate:"required"`
	BuyerKey      string              `yaml:"buyer_key" json:"buyer_key" validate:"required"`
	MaterialInfo  Material            `yaml:"material" json:"material" validate:"required"`
	Lane          string              `yaml:"lane" json:"lane"`
	Price         float64             `yaml:"price" json:"price"`
	Currency      string              `yaml:"currency,omitempty" json:"currency,omitempty"`
	Outcome       TransactionOutcome  `yaml:"outcome,omitempty" json:"outcome,omitempty"`
	ClosedAt      time.Time           `yaml:"closed_at" json:"closed_at"`
	Meta          Metadata            `yaml:"metadata" json:"metadata"`
}

// EdgeType implements Payload.
func (t *TransactionRecord) EdgeType() string { return "transaction" }

// IdentityKey implements Payload.
func (t *TransactionRecord) IdentityKey() string { return t.TransactionID }
