package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"cloud.google.com/go/firestore"
	kms "cloud.google.com/go/kms/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"firebase.google.com/go/v4/auth"
	"github.com/redis/go-redis/v9"

	mcpclient "github.com/GregMSThompson/mcp-proxy/internal/client/mcp"
	"github.com/GregMSThompson/mcp-proxy/internal/config"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type Bootstrap struct {
	Log       *slog.Logger
	Redis     *redis.Client
	Firestore *firestore.Client
	Firebase  *auth.Client
	KMS       *kms.KeyManagementClient
	Secrets   *secretmanager.Client
	MCP       *mcpclient.Adapter
	Completer Completer

	closers []func() error
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.NewCloudRunHandler)
	slog.SetDefault(bs.Log)

	switch cfg.SessionBackend {
	case config.BackendFirestore:
		bs.Firestore, err = InitFirestore(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.Firestore.Close)
	default:
		bs.Redis, err = InitRedis(applicationCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.Redis.Close)
	}

	if cfg.KMSKeyName != "" {
		bs.KMS, err = InitKMS(applicationCtx)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.KMS.Close)
	}

	if cfg.AuthEnabled {
		bs.Firebase, err = InitFirebase(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
	}

	apiKey := cfg.AnthropicAPIKey
	if cfg.CompletionProvider == config.ProviderAnthropic && apiKey == "" {
		bs.Secrets, err = InitSecretManager(applicationCtx)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.Secrets.Close)
		apiKey, err = ResolveSecret(applicationCtx, bs.Secrets, cfg.ProjectID, cfg.AnthropicAPIKeySecret)
		if err != nil {
			return bs, err
		}
	}

	var closeCompleter func() error
	bs.Completer, closeCompleter, err = InitCompleter(applicationCtx, bs.Log, cfg, apiKey)
	if err != nil {
		return bs, err
	}
	if closeCompleter != nil {
		bs.closers = append(bs.closers, closeCompleter)
	}

	// the MCP session is opened lazily on first use so a slow tool server
	// does not block startup
	bs.MCP = mcpclient.NewAdapter(bs.Log, cfg.MCPServerURL)
	bs.closers = append(bs.closers, bs.MCP.Close)

	return bs, nil
}

// Close releases clients in reverse order of creation.
func (bs *Bootstrap) Close() error {
	var errList []error
	for i := len(bs.closers) - 1; i >= 0; i-- {
		if err := bs.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
