package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Hyperedge is the generic storage unit every canonical payload is
// converted into: {edge_type, key, payload, embedding_text, created_at,
// updated_at}. EmbeddingText is the canonical string the Hypergraph
// Store's EmbeddingProvider turns into a vector; Embedding itself is filled
// in by the store, not here.
type Hyperedge struct {
	EdgeType      string
	Key           string
	PayloadJSON   json.RawMessage
	EmbeddingText string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToHyperedge produces the generic storage representation of payload. Key
// is deterministic from identity fields so repeated canonicalization of the
// same entity always targets the same hyperedge row.
func ToHyperedge(payload Payload) (Hyperedge, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Hyperedge{}, fmt.Errorf("marshal payload: %w", err)
	}

	version, updatedAt := metadataOf(payload)

	return Hyperedge{
		EdgeType:      payload.EdgeType(),
		Key:           payload.IdentityKey(),
		PayloadJSON:   data,
		EmbeddingText: embeddingText(payload),
		Version:       version,
		UpdatedAt:     updatedAt,
	}, nil
}

func metadataOf(payload Payload) (version int, updatedAt time.Time) {
	switch p := payload.(type) {
	case *BCP:
		return p.Meta.Version, p.Meta.UpdatedAt
	case *SupplierOffering:
		return p.Meta.Version, p.Meta.UpdatedAt
	case *TransactionRecord:
		return p.Meta.Version, p.Meta.UpdatedAt
	default:
		return 1, time.Time{}
	}
}

// embeddingText renders the canonical text fields used to derive a payload's
// vector embedding, concatenated in a stable order so identical payloads
// always produce identical embedding input.
func embeddingText(payload Payload) string {
	var parts []string
	switch p := payload.(type) {
	case *BCP:
		parts = []string{
			p.CompanyName, p.BuyerLocation, p.MaterialInfo.Polymer,
			strings.Join(p.MaterialInfo.Forms, " "),
			strings.Join(p.MaterialInfo.Applications, " "),
			strings.Join(p.GeographyInfo.Countries, " "),
			strings.Join(p.GeographyInfo.Regions, " "),
			strings.Join(p.Certifications, " "),
		}
	case *SupplierOffering:
		parts = []string{
			p.SupplierReference, p.MaterialInfo.Polymer,
			strings.Join(p.MaterialInfo.Forms, " "),
			p.Location,
		}
	case *TransactionRecord:
		parts = []string{
			p.SupplierKey, p.BuyerKey, p.MaterialInfo.Polymer, p.Lane,
		}
	}
	return strings.Join(nonEmpty(parts), " ")
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
