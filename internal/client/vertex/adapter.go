package vertexclient

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/vertexai/genai"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
)

type Adapter struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewAdapter(ctx context.Context, log *slog.Logger, projectID, region, model string) (*Adapter, error) {
	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client: client,
		model:  model,
		log:    log,
	}, nil
}

func (a *Adapter) Close() error {
	err := a.client.Close()
	if err != nil && a.log != nil {
		a.log.Error("vertex adapter close failed", "error", err)
	}
	return err
}

// Complete sends the conversation as chat history with the last user
// message as the new turn and returns the concatenated text parts.
func (a *Adapter) Complete(ctx context.Context, req dto.CompletionRequest) (string, error) {
	// Claude model ids are meaningless to Vertex; only the configured model is used.
	modelName := a.model
	if modelName == "" {
		return "", fmt.Errorf("vertex model is required")
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("vertex completion request has no messages")
	}

	model := a.client.GenerativeModel(modelName)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	history, last := toHistory(req.Messages)
	chat := model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", err
	}
	return parseText(resp), nil
}

// toHistory maps messages to genai contents. Everything but the final
// message becomes history; the final message is returned as the prompt.
func toHistory(msgs []dto.CompletionMessage) ([]*genai.Content, string) {
	last := msgs[len(msgs)-1].Content
	history := make([]*genai.Content, 0, len(msgs)-1)
	for _, m := range msgs[:len(msgs)-1] {
		history = append(history, &genai.Content{
			Role:  toGenaiRole(m.Role),
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history, last
}

func toGenaiRole(role string) string {
	if role == dto.RoleAssistant {
		return "model"
	}
	return "user"
}

func parseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	var text string
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if p, ok := part.(genai.Text); ok {
				text += string(p)
			}
		}
	}
	return text
}
