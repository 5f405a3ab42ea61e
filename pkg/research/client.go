package research

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResearchClient is the pluggable retrieval backend the Retrieval stage
// executes prompts against. Implementations never parse the response; they
// return raw text/JSON for the Extraction stage to validate.
type ResearchClient interface {
	// Execute runs prompt against the backend and returns its raw response.
	Execute(ctx context.Context, prompt string) (json.RawMessage, error)
	// ClientType names the backend for rate-limiter keying and logging,
	// matching a research_client_type config value.
	ClientType() string
}

// NewClient builds the ResearchClient named by clientType. apiKey is
// ignored by the stub client.
func NewClient(clientType, apiKey string) (ResearchClient, error) {
	switch clientType {
	case "stub":
		return StubClient{}, nil
	case "perplexity":
		return NewPerplexityClient(apiKey), nil
	case "openai":
		return NewLangchainClient("openai", apiKey)
	case "gemini":
		return NewLangchainClient("gemini", apiKey)
	case "anthropic":
		return NewAnthropicClient(apiKey), nil
	case "bedrock":
		return NewBedrockClient(apiKey)
	default:
		return nil, fmt.Errorf("unknown research_client_type: %s", clientType)
	}
}
