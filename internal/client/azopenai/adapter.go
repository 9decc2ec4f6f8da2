package azopenaiclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
)

type Adapter struct {
	client     *azopenai.Client
	deployment string
	log        *slog.Logger
}

func NewAdapter(log *slog.Logger, endpoint, apiKey, deployment string) (*Adapter, error) {
	client, err := azopenai.NewClientWithKeyCredential(endpoint, azcore.NewKeyCredential(apiKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure openai client: %w", err)
	}
	return &Adapter{client: client, deployment: deployment, log: log}, nil
}

// Complete runs a chat completion against the configured deployment.
// The request model is ignored; Azure routes by deployment name.
func (a *Adapter) Complete(ctx context.Context, req dto.CompletionRequest) (string, error) {
	opts := azopenai.ChatCompletionsOptions{
		DeploymentName: to.Ptr(a.deployment),
		Messages:       toChatMessages(req),
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = to.Ptr(int32(req.MaxTokens))
	}

	resp, err := a.client.GetChatCompletions(ctx, opts, nil)
	if err != nil {
		return "", fmt.Errorf("azure openai: %w", err)
	}

	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil && resp.Choices[0].Message.Content != nil {
		return *resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("azure openai: no response content")
}

func toChatMessages(req dto.CompletionRequest) []azopenai.ChatRequestMessageClassification {
	out := make([]azopenai.ChatRequestMessageClassification, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, &azopenai.ChatRequestSystemMessage{
			Content: azopenai.NewChatRequestSystemMessageContent(req.System),
		})
	}
	for _, m := range req.Messages {
		if m.Role == dto.RoleAssistant {
			out = append(out, &azopenai.ChatRequestAssistantMessage{
				Content: azopenai.NewChatRequestAssistantMessageContent(m.Content),
			})
			continue
		}
		out = append(out, &azopenai.ChatRequestUserMessage{
			Content: azopenai.NewChatRequestUserMessageContent(m.Content),
		})
	}
	return out
}
