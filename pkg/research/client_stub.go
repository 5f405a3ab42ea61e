package research

import (
	"context"
	"encoding/json"
	"fmt"
)

// StubClient is a deterministic ResearchClient for tests and for development
// environments without a configured research_client_api_key. It echoes a
// single synthetic BCP-shaped record derived from the prompt text.
type StubClient struct{}

// ClientType implements ResearchClient.
func (StubClient) ClientType() string { return "stub" }

// Execute implements ResearchClient: returns one deterministic record so
// downstream extraction has something to validate during tests.
func (StubClient) Execute(_ context.Context, prompt string) (json.RawMessage, error) {
	record := map[string]interface{}{
		"company_name": "Stub Buyer Co",
		"buyer_location": "Akron, OH",
		"material": map[string]interface{}{
			"polymer": "HDPE",
		},
		"metadata": map[string]interface{}{
			"version": 1,
			"source":  fmt.Sprintf("stub:%d", len(prompt)),
		},
	}
	out, err := json.Marshal([]map[string]interface{}{record})
	if err != nil {
		return nil, err
	}
	return out, nil
}
