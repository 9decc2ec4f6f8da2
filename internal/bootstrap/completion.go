package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	anthropicclient "github.com/GregMSThompson/mcp-proxy/internal/client/anthropic"
	azopenaiclient "github.com/GregMSThompson/mcp-proxy/internal/client/azopenai"
	vertexclient "github.com/GregMSThompson/mcp-proxy/internal/client/vertex"
	"github.com/GregMSThompson/mcp-proxy/internal/config"
	"github.com/GregMSThompson/mcp-proxy/internal/dto"
)

type Completer interface {
	Complete(ctx context.Context, req dto.CompletionRequest) (string, error)
}

// InitCompleter builds the adapter for the configured provider. The returned
// close func is nil when the adapter holds no resources.
func InitCompleter(ctx context.Context, log *slog.Logger, cfg *config.Config, anthropicKey string) (Completer, func() error, error) {
	switch cfg.CompletionProvider {
	case config.ProviderAnthropic:
		return anthropicclient.NewAdapter(log, anthropicKey, cfg.FormattingModel, cfg.AnthropicBaseURL), nil, nil
	case config.ProviderVertex:
		adapter, err := vertexclient.NewAdapter(ctx, log, cfg.ProjectID, cfg.Region, cfg.VertexModel)
		if err != nil {
			return nil, nil, err
		}
		return adapter, adapter.Close, nil
	case config.ProviderAzure:
		adapter, err := azopenaiclient.NewAdapter(log, cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.AzureDeployment)
		if err != nil {
			return nil, nil, err
		}
		return adapter, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported completion provider %q", cfg.CompletionProvider)
	}
}
