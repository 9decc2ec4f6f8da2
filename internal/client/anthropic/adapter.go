package anthropicclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
)

const (
	apiVersion       = "2023-06-01"
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens = 2000
	serviceName      = "anthropic"
)

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *apiError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Adapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	log        *slog.Logger
}

// NewAdapter builds a Messages API client. An empty baseURL uses the public endpoint.
func NewAdapter(log *slog.Logger, apiKey, model, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		log:        log,
	}
}

func (a *Adapter) Complete(ctx context.Context, req dto.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return "", fmt.Errorf("anthropic: model is required")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := messagesRequest{
		Model:     model,
		System:    req.System,
		MaxTokens: maxTokens,
		Messages:  make([]message, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, message{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: creating request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", errs.NewExternalServiceError(serviceName, "request failed", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewExternalServiceError(serviceName, "reading response body", true, err)
	}

	if a.log != nil {
		a.log.Debug("anthropic response received", "status", resp.StatusCode, "model", model, "body_length", len(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", errs.NewExternalServiceError(serviceName,
			fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(string(respBody), 512)), transient, nil)
	}

	var out messagesResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("anthropic: parsing response: %w", err)
	}
	if out.Error != nil {
		return "", errs.NewExternalServiceError(serviceName, out.Error.Type+": "+out.Error.Message, false, nil)
	}

	var text string
	for _, block := range out.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: response contained no text")
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
