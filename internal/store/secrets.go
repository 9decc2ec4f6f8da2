package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GregMSThompson/mcp-proxy/internal/errs"
)

// secretAccessor is satisfied by *secretmanager.Client.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type secretsStore struct {
	client    secretAccessor
	projectID string
}

func NewSecretsStore(client secretAccessor, projectID string) *secretsStore {
	return &secretsStore{client: client, projectID: projectID}
}

// versionName accepts a bare secret id, a secret resource name, or a full
// version resource name. Missing parts default to this project and the
// latest version.
func (s *secretsStore) versionName(secret string) string {
	if !strings.HasPrefix(secret, "projects/") {
		secret = fmt.Sprintf("projects/%s/secrets/%s", s.projectID, secret)
	}
	if !strings.Contains(secret, "/versions/") {
		secret += "/versions/latest"
	}
	return secret
}

func (s *secretsStore) Access(ctx context.Context, secret string) (string, error) {
	res, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.versionName(secret),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", errs.NewNotFoundError(fmt.Sprintf("secret %s not found", secret))
		}
		return "", errs.NewExternalServiceError("secretmanager", "failed to access secret", false, err)
	}
	return strings.TrimSpace(string(res.Payload.Data)), nil
}
