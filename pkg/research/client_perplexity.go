package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
	sharedhttp "github.com/plasticbrokerage/l9/pkg/shared/http"
)

const perplexityEndpoint = "https://api.perplexity.ai/chat/completions"

// PerplexityClient is a hand-rolled REST ResearchClient: no Go SDK exists
// for Perplexity's API, so it speaks the chat-completions contract directly
// over net/http.
type PerplexityClient struct {
	apiKey string
	client *http.Client
	model  string
}

// NewPerplexityClient builds a PerplexityClient tuned with the LLM client
// timeout profile.
func NewPerplexityClient(apiKey string) *PerplexityClient {
	return &PerplexityClient{
		apiKey: apiKey,
		client: sharedhttp.NewClient(sharedhttp.LLMClientConfig(60 * time.Second)),
		model:  "sonar",
	}
}

// ClientType implements ResearchClient.
func (c *PerplexityClient) ClientType() string { return "perplexity" }

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message perplexityMessage `json:"message"`
	} `json:"choices"`
}

// Execute implements ResearchClient: posts prompt as a single user message
// and returns the assistant's raw completion text as json.RawMessage.
func (c *PerplexityClient) Execute(ctx context.Context, prompt string) (json.RawMessage, error) {
	body, err := json.Marshal(perplexityRequest{
		Model: c.model,
		Messages: []perplexityMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, sharederrors.ParseError("perplexity request", "json", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, perplexityEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, sharederrors.NetworkError("build perplexity request", perplexityEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, sharederrors.NetworkError("perplexity retrieval", perplexityEndpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sharederrors.NetworkError("read perplexity response", perplexityEndpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, sharederrors.NetworkError("perplexity retrieval", perplexityEndpoint,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, sharederrors.ParseError("perplexity response", "json", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("perplexity response had no choices")
	}
	return json.RawMessage(parsed.Choices[0].Message.Content), nil
}
