package bootstrap

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"

	"github.com/GregMSThompson/mcp-proxy/internal/store"
)

func InitSecretManager(ctx context.Context) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx)
}

func ResolveSecret(ctx context.Context, client *secretmanager.Client, projectID, secret string) (string, error) {
	value, err := store.NewSecretsStore(client, projectID).Access(ctx, secret)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", secret, err)
	}
	return value, nil
}
