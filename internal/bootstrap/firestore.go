package bootstrap

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// InitFirestore connects the session backend. FIRESTORE_EMULATOR_HOST is
// honoured by the client itself.
func InitFirestore(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client for %s: %w", projectID, err)
	}
	return client, nil
}
