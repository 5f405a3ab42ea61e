package research

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	sharederrors "github.com/plasticbrokerage/l9/pkg/shared/errors"
)

// BedrockClient is the bedrock research_client_type implementation, backed
// by the AWS Bedrock Converse API.
type BedrockClient struct {
	runtime *bedrockruntime.Client
	modelID string
}

// NewBedrockClient builds a BedrockClient using the default AWS credential
// chain; apiKey is accepted for factory-signature symmetry with the other
// providers but unused — Bedrock authenticates via IAM, not a bearer token.
func NewBedrockClient(_ string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, sharederrors.ConfigurationError("research_client", fmt.Sprintf("failed to load AWS config for bedrock: %v", err))
	}
	return &BedrockClient{
		runtime: bedrockruntime.NewFromConfig(cfg),
		modelID: "anthropic.claude-3-5-sonnet-20241022-v2:0",
	}, nil
}

// ClientType implements ResearchClient.
func (c *BedrockClient) ClientType() string { return "bedrock" }

// Execute implements ResearchClient.
func (c *BedrockClient) Execute(ctx context.Context, prompt string) (json.RawMessage, error) {
	out, err := c.runtime.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
	})
	if err != nil {
		return nil, sharederrors.NetworkError("bedrock retrieval", c.modelID, err)
	}

	output, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(output.Value.Content) == 0 {
		return nil, fmt.Errorf("bedrock response had no message content")
	}
	block, ok := output.Value.Content[0].(*brtypes.ContentBlockMemberText)
	if !ok {
		return nil, fmt.Errorf("bedrock response's first content block was not text")
	}
	return json.RawMessage(block.Value), nil
}
