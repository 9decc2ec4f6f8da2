package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/mcp-proxy/infra/cloudrun"
	"github.com/GregMSThompson/mcp-proxy/infra/docker"
	"github.com/GregMSThompson/mcp-proxy/infra/firestore"
	"github.com/GregMSThompson/mcp-proxy/infra/identity"
	"github.com/GregMSThompson/mcp-proxy/infra/kms"
	"github.com/GregMSThompson/mcp-proxy/infra/provider"
	"github.com/GregMSThompson/mcp-proxy/infra/secret"
	"github.com/GregMSThompson/mcp-proxy/infra/vertex"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		// set default provider with the correct project
		prov, err := provider.SetupDefaultProvider(ctx)
		if err != nil {
			return err
		}

		// identity platform backs the optional firebase bearer auth
		ident, err := identity.SetupIdentity(ctx, prov)
		if err != nil {
			return err
		}

		// firestore holds sessions when SESSION_BACKEND=firestore
		fs, err := firestore.SetupFirestore(ctx, prov)
		if err != nil {
			return err
		}

		vtx, err := vertex.SetupVertex(ctx, prov)
		if err != nil {
			return err
		}

		apiSA, err := cloudrun.CreateServiceAccount(ctx, prov)
		if err != nil {
			return err
		}

		// session payloads are sealed with this key
		if _, err := kms.SetupKMS(ctx, prov); err != nil {
			return err
		}
		keyID, err := kms.CreateKey(ctx, prov, "mcp-proxy", "sessions", apiSA)
		if err != nil {
			return err
		}

		sm, err := secret.SetupSecretManager(ctx, prov, apiSA)
		if err != nil {
			return err
		}

		repo, err := docker.CreateCloudrunRepo(ctx, prov)
		if err != nil {
			return err
		}

		return cloudrun.SetupCloudRun(ctx, prov, apiSA, keyID, sm, ident, fs, vtx, sm.Service, repo)
	})
}
