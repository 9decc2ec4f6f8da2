package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// InitFirebase returns the token verifier used when AUTH_ENABLED is set. An
// empty projectID lets the SDK discover it from the environment.
func InitFirebase(ctx context.Context, projectID string) (*auth.Client, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app.Auth(ctx)
}
