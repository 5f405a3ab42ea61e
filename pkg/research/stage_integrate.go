package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/plasticbrokerage/l9/pkg/hypergraph"
	"github.com/plasticbrokerage/l9/pkg/schema"
	"github.com/plasticbrokerage/l9/pkg/shared/logging"
)

const maxIntegrationRetries = 2

// integrate writes every extracted payload to the Hypergraph Store and
// notifies the World Model, per payload: a failed write is retried up to
// maxIntegrationRetries times before being recorded as a persistent
// failure in the job summary, per spec.md §4.4 "failed writes are
// retried; persistent failures are reported in the job summary".
func (p *Pipeline) integrate(ctx context.Context, payloads []ExtractedPayload) (*IntegrationResult, error) {
	result := &IntegrationResult{}
	for _, extracted := range payloads {
		select {
		case <-ctx.Done():
			result.Failed = append(result.Failed, IntegrationFailure{
				EdgeType: extracted.EdgeType, Key: extracted.Key, Reason: ctx.Err().Error(),
			})
			continue
		default:
		}

		receipt, err := p.integrateOne(ctx, extracted)
		if err != nil {
			result.Failed = append(result.Failed, IntegrationFailure{
				EdgeType: extracted.EdgeType, Key: extracted.Key, Reason: err.Error(),
			})
			p.logger.WithFields(logging.HyperedgeFields("integrate", extracted.EdgeType, extracted.Key, 0).ToLogrus()).
				WithError(err).Error("persistent hyperedge write failure")
			continue
		}
		result.Written = append(result.Written, receipt)
	}
	return result, nil
}

func (p *Pipeline) integrateOne(ctx context.Context, extracted ExtractedPayload) (hypergraph.WriteReceipt, error) {
	var lastErr error
	for attempt := 0; attempt <= maxIntegrationRetries; attempt++ {
		receipt, err := p.store.WriteHyperedge(ctx, extracted.EdgeType, extracted.Key, extracted.Payload,
			embeddingText(extracted), p.embeddingModel)
		if err == nil {
			p.observeWritten(ctx, extracted)
			return receipt, nil
		}
		lastErr = err
	}
	return hypergraph.WriteReceipt{}, fmt.Errorf("write_hyperedge failed after %d attempts: %w", maxIntegrationRetries+1, lastErr)
}

func (p *Pipeline) observeWritten(ctx context.Context, extracted ExtractedPayload) {
	if p.worldModel == nil {
		return
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(extracted.Payload, &raw); err != nil {
		return
	}
	payload, err := schema.Validate(raw, extracted.EdgeType)
	if err != nil {
		return
	}
	p.worldModel.ObserveHyperedge(ctx, extracted.EdgeType, extracted.Key, payload)
}

// embeddingText renders the text a candidate's embedding is computed over:
// the fields that carry semantic meaning for buyer-offering matching.
func embeddingText(extracted ExtractedPayload) string {
	var raw map[string]interface{}
	if err := json.Unmarshal(extracted.Payload, &raw); err != nil {
		return ""
	}
	var parts []string
	if company, ok := raw["company_name"].(string); ok {
		parts = append(parts, company)
	}
	if material, ok := raw["material"].(map[string]interface{}); ok {
		if polymer, ok := material["polymer"].(string); ok {
			parts = append(parts, polymer)
		}
	}
	if segments, ok := raw["segments"].([]interface{}); ok {
		for _, s := range segments {
			if str, ok := s.(string); ok {
				parts = append(parts, str)
			}
		}
	}
	return strings.Join(parts, " ")
}
