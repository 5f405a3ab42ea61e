package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// FromYAML parses text into the canonical payload named by edgeType, for
// the manual-editing workflow (human-reviewed BCP corrections).
func FromYAML(text []byte, edgeType string) (Payload, error) {
	switch edgeType {
	case "bcp":
		var b BCP
		if err := yaml.Unmarshal(text, &b); err != nil {
			return nil, fmt.Errorf("parse bcp yaml: %w", err)
		}
		return &b, nil
	case "supplier_offering":
		var s SupplierOffering
		if err := yaml.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("parse supplier_offering yaml: %w", err)
		}
		return &s, nil
	case "transaction":
		var t TransactionRecord
		if err := yaml.Unmarshal(text, &t); err != nil {
			return nil, fmt.Errorf("parse transaction yaml: %w", err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("unknown edge_type: %s", edgeType)
	}
}

// ToYAML renders payload back to its human-editable form.
func ToYAML(payload Payload) (string, error) {
	data, err := yaml.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	return string(data), nil
}
