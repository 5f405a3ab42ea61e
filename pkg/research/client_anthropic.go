package research

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// AnthropicClient is the anthropic research_client_type implementation.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient builds an AnthropicClient.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.ModelClaude3_5SonnetLatest,
	}
}

// ClientType implements ResearchClient.
func (c *AnthropicClient) ClientType() string { return "anthropic" }

// Execute implements ResearchClient.
func (c *AnthropicClient) Execute(ctx context.Context, prompt string) (json.RawMessage, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, sharederrors.NetworkError("anthropic retrieval", "anthropic", err)
	}
	if len(message.Content) == 0 {
		return nil, fmt.Errorf("anthropic response had no content blocks")
	}
	return json.RawMessage(message.Content[0].Text), nil
}

// Complete implements reasoning.LLMClient.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	raw, err := c.Execute(ctx, prompt)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
