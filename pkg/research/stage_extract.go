package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plasticbrokerage/l9/pkg/schema"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

// ambiguityThreshold is the completeness band below which extraction
// invokes ambiguity_resolve for a second opinion before accepting a record,
// per spec.md §4.6 "optionally ambiguity_resolve for borderline records".
const ambiguityThreshold = 0.4

type ambiguityResolveInput struct {
	EdgeType string                 `json:"edge_type"`
	Payload  map[string]interface{} `json:"payload"`
}

type ambiguityResolveOutput struct {
	Resolved map[string]interface{} `json:"resolved"`
	Accept   bool                   `json:"accept"`
}

// extract parses every retrieval batch's raw response into candidate
// records, validates each against the canonical schema, normalizes
// synonyms, and computes completeness. Objects failing required-field
// validation are discarded and logged, not fatal to the stage; objects
// discarded never appear in the returned payload list.
func (p *Pipeline) extract(ctx context.Context, batches []RetrievalBatch) ([]ExtractedPayload, error) {
	var payloads []ExtractedPayload
	for _, batch := range batches {
		if batch.Failed || len(batch.Raw) == 0 {
			continue
		}
		records, err := parseRecords(batch.Raw)
		if err != nil {
			p.logger.WithFields(logging.WorkflowFields("extract", "").Custom("scope", batch.Query.Scope).ToLogrus()).
				WithError(err).Warn("failed to parse retrieval batch, discarding")
			continue
		}
		for _, raw := range records {
			if extracted, ok := p.extractOne(ctx, raw); ok {
				payloads = append(payloads, extracted)
			}
		}
	}
	return payloads, nil
}

func (p *Pipeline) extractOne(ctx context.Context, raw map[string]interface{}) (ExtractedPayload, bool) {
	const edgeType = "bcp"

	normalizeMaterialSynonyms(raw)

	payload, err := schema.Validate(raw, edgeType)
	if err != nil {
		p.logger.WithFields(logging.WorkflowFields("extract", "").ToLogrus()).
			WithError(err).Debug("discarding record failing canonical validation")
		return ExtractedPayload{}, false
	}

	completeness := schema.Completeness(payload)
	if completeness < ambiguityThreshold && p.reasoning != nil {
		payload, completeness = p.resolveAmbiguity(ctx, edgeType, raw, payload, completeness)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return ExtractedPayload{}, false
	}
	return ExtractedPayload{
		EdgeType:     edgeType,
		Key:          payload.IdentityKey(),
		Payload:      encoded,
		Completeness: completeness,
	}, true
}

func (p *Pipeline) resolveAmbiguity(ctx context.Context, edgeType string, raw map[string]interface{}, fallback schema.Payload, fallbackScore float64) (schema.Payload, float64) {
	input, err := json.Marshal(ambiguityResolveInput{EdgeType: edgeType, Payload: raw})
	if err != nil {
		return fallback, fallbackScore
	}
	out, err := p.reasoning.Invoke(ctx, "ambiguity_resolve", input)
	if err != nil {
		return fallback, fallbackScore
	}
	var decoded ambiguityResolveOutput
	if err := json.Unmarshal(out, &decoded); err != nil || !decoded.Accept {
		return fallback, fallbackScore
	}
	resolved, err := schema.Validate(decoded.Resolved, edgeType)
	if err != nil {
		return fallback, fallbackScore
	}
	return resolved, schema.Completeness(resolved)
}

func normalizeMaterialSynonyms(raw map[string]interface{}) {
	material, ok := raw["material"].(map[string]interface{})
	if !ok {
		return
	}
	polymer, ok := material["polymer"].(string)
	if !ok || polymer == "" {
		return
	}
	material["polymer"] = schema.NormalizeSynonyms(polymer)
}

// parseRecords accepts either a bare JSON array of record objects or a JSON
// object wrapped in a markdown code fence (as LLM-backed clients sometimes
// emit despite being asked for raw JSON).
func parseRecords(raw json.RawMessage) ([]map[string]interface{}, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		return records, nil
	}

	var single map[string]interface{}
	if err := json.Unmarshal([]byte(text), &single); err == nil {
		return []map[string]interface{}{single}, nil
	}

	return nil, fmt.Errorf("retrieval batch was neither a JSON array nor a JSON object")
}
