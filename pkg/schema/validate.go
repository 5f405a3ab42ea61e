package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError aggregates every field failure from a single validate()
// call, rather than failing fast on the first one.
type ValidationError struct {
	EdgeType string
	Fields   []FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed for %s:", e.EdgeType)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, " %s: %s;", f.Field, f.Reason)
	}
	return b.String()
}

// HasErrors reports whether any field failure was collected.
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

// Validate parses raw into the canonical payload named by edgeType and
// validates required fields, returning every field failure in one pass. A
// partial BCP with required fields present is valid even if completeness is
// low; low completeness is a matching-time signal, not a validation error.
func Validate(raw map[string]interface{}, edgeType string) (Payload, error) {
	switch edgeType {
	case "bcp":
		return validatePayload(edgeType, raw, &BCP{})
	case "supplier_offering":
		return validatePayload(edgeType, raw, &SupplierOffering{})
	case "transaction":
		return validatePayload(edgeType, raw, &TransactionRecord{})
	default:
		return nil, fmt.Errorf("unknown edge_type: %s", edgeType)
	}
}

func validatePayload[T Payload](edgeType string, raw map[string]interface{}, target T) (Payload, error) {
	if err := decodeInto(raw, target); err != nil {
		return nil, &ValidationError{EdgeType: edgeType, Fields: []FieldError{{Field: "<root>", Reason: err.Error()}}}
	}

	if err := validate.Struct(target); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, &ValidationError{EdgeType: edgeType, Fields: []FieldError{{Field: "<root>", Reason: err.Error()}}}
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:  fe.Namespace(),
				Reason: fmt.Sprintf("failed on %s", fe.Tag()),
			})
		}
		return nil, &ValidationError{EdgeType: edgeType, Fields: fields}
	}

	return target, nil
}

// decodeInto round-trips raw through JSON into target, since raw arrives as
// a generic map[string]interface{} from retrieval or intake JSON.
func decodeInto(raw map[string]interface{}, target interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode raw payload: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode into payload: %w", err)
	}
	return nil
}
