package research

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// LangchainClient adapts langchaingo's provider-agnostic llms.Model to
// ResearchClient, covering the openai and gemini research_client_type
// values with one implementation.
type LangchainClient struct {
	clientType string
	model      llms.Model
}

// NewLangchainClient builds a LangchainClient for providerType ("openai" or
// "gemini").
func NewLangchainClient(providerType, apiKey string) (*LangchainClient, error) {
	var model llms.Model
	var err error
	switch providerType {
	case "openai":
		model, err = openai.New(openai.WithToken(apiKey), openai.WithModel("gpt-4o"))
	case "gemini":
		model, err = googleai.New(context.Background(), googleai.WithAPIKey(apiKey), googleai.WithDefaultModel("gemini-1.5-pro"))
	default:
		return nil, fmt.Errorf("unsupported langchain provider: %s", providerType)
	}
	if err != nil {
		return nil, sharederrors.ConfigurationError("research_client", fmt.Sprintf("failed to build %s client: %v", providerType, err))
	}
	return &LangchainClient{clientType: providerType, model: model}, nil
}

// ClientType implements ResearchClient.
func (c *LangchainClient) ClientType() string { return c.clientType }

// Execute implements ResearchClient.
func (c *LangchainClient) Execute(ctx context.Context, prompt string) (json.RawMessage, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
	if err != nil {
		return nil, sharederrors.NetworkError("langchain retrieval", c.clientType, err)
	}
	return json.RawMessage(completion), nil
}

// Complete implements reasoning.LLMClient, so the same provider can back
// LLM-backed reasoning blocks (pkg/matching's explanation_synthesize)
// without a second client construction path.
func (c *LangchainClient) Complete(ctx context.Context, prompt string) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt)
}
