package cloudrun

import (
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/cloudrun"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/GregMSThompson/mcp-proxy/infra/common"
	"github.com/GregMSThompson/mcp-proxy/infra/secret"
)

// SetupCloudRun builds the image and deploys the proxy. keyID is the KMS
// key that seals session payloads.
func SetupCloudRun(ctx *pulumi.Context, prov *gcp.Provider, apiSA *serviceaccount.Account, keyID pulumi.StringOutput, sm *secret.Manager, res ...pulumi.Resource) error {
	img, err := buildApiImage(ctx, res...)
	if err != nil {
		return err
	}

	envs, err := serviceEnv(ctx, keyID, sm)
	if err != nil {
		return err
	}

	srv, err := enableCloudRun(ctx, prov)
	if err != nil {
		return err
	}

	svc, err := createCloudRunService(ctx, img, apiSA, envs, prov, srv)
	if err != nil {
		return err
	}

	return setIAMAccessPolicy(ctx, svc, prov)
}

func buildApiImage(ctx *pulumi.Context, res ...pulumi.Resource) (*docker.Image, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")

	hash, err := common.GenerateHash("../")
	if err != nil {
		return nil, err
	}

	return docker.NewImage(ctx, "proxyImage", &docker.ImageArgs{
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(".."),                    // build from repo root
			Dockerfile: pulumi.String("../cmd/api/Dockerfile"), // Dockerfile path relative to repo root
		},
		ImageName: pulumi.String(fmt.Sprintf("%s-docker.pkg.dev/%s/mcp-proxy/mcp-proxy:%s", region, projectID, hash)),
	},
		pulumi.DependsOn(res),
	)
}

func enableCloudRun(ctx *pulumi.Context, prov *gcp.Provider) (*projects.Service, error) {
	return projects.NewService(ctx, "cloudRunService", &projects.ServiceArgs{
		Service: pulumi.String("run.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
}

// CreateServiceAccount creates the runtime identity and grants it Firestore
// and Vertex access. KMS and Secret Manager grants are made where those
// resources are created.
func CreateServiceAccount(ctx *pulumi.Context, prov *gcp.Provider) (*serviceaccount.Account, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")

	apiSA, err := serviceaccount.NewAccount(ctx, "proxyServiceAccount", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String("mcp-proxy"),
		DisplayName: pulumi.String("MCP Proxy Service Account"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	member := apiSA.Email.ApplyT(func(email string) string {
		return fmt.Sprintf("serviceAccount:%s", email)
	}).(pulumi.StringOutput)

	roles := map[string]string{
		"firestoreAccess": "roles/datastore.user", // Firestore read/write
		"vertexAccess":    "roles/aiplatform.user",
	}
	for name, role := range roles {
		_, err = projects.NewIAMMember(ctx, name, &projects.IAMMemberArgs{
			Role:    pulumi.String(role),
			Member:  member,
			Project: pulumi.String(projectID),
		},
			pulumi.Provider(prov),
		)
		if err != nil {
			return nil, err
		}
	}

	return apiSA, nil
}

func plainEnv(name string, value pulumi.StringPtrInput) *cloudrun.ServiceTemplateSpecContainerEnvArgs {
	return &cloudrun.ServiceTemplateSpecContainerEnvArgs{
		Name:  pulumi.String(name),
		Value: value,
	}
}

// serviceEnv maps stack config onto the environment the proxy reads.
func serviceEnv(ctx *pulumi.Context, keyID pulumi.StringOutput, sm *secret.Manager) (cloudrun.ServiceTemplateSpecContainerEnvArray, error) {
	gcpCfg := config.New(ctx, "gcp")
	crCfg := config.New(ctx, "cloudrun")
	proxyCfg := config.New(ctx, "proxy")

	provider := proxyCfg.Get("completionProvider")
	if provider == "" {
		provider = "anthropic"
	}
	authEnabled := proxyCfg.GetBool("authEnabled")

	envs := cloudrun.ServiceTemplateSpecContainerEnvArray{
		plainEnv("PROJECTID", pulumi.String(gcpCfg.Require("project"))),
		plainEnv("REGION", pulumi.String(gcpCfg.Require("region"))),
		plainEnv("LOGLEVEL", pulumi.String(crCfg.Require("logLevel"))),
		plainEnv("MCP_SERVER_URL", pulumi.String(proxyCfg.Require("mcpServerUrl"))),
		plainEnv("COMPLETION_PROVIDER", pulumi.String(provider)),
		plainEnv("SESSION_BACKEND", pulumi.String("firestore")),
		plainEnv("KMSKEYNAME", keyID),
		plainEnv("AUTH_ENABLED", pulumi.String(strconv.FormatBool(authEnabled))),
	}
	if host := proxyCfg.Get("sdeHost"); host != "" {
		envs = append(envs, plainEnv("SDE_HOST", pulumi.String(host)))
	}
	if model := proxyCfg.Get("vertexModel"); model != "" {
		envs = append(envs, plainEnv("VERTEXMODEL", pulumi.String(model)))
	}

	if provider == "anthropic" {
		anthropicCfg := config.New(ctx, "anthropic")
		secretID, err := sm.AddSecret(ctx, "anthropicApiKeySecret", "anthropicApiKey", anthropicCfg.RequireSecret("apiKey"))
		if err != nil {
			return nil, err
		}
		// resolved through Secret Manager at startup
		envs = append(envs, plainEnv("ANTHROPIC_API_KEY_SECRET", secretID))
	}
	return envs, nil
}

func createCloudRunService(ctx *pulumi.Context,
	img *docker.Image,
	apiSA *serviceaccount.Account,
	envs cloudrun.ServiceTemplateSpecContainerEnvArray,
	prov *gcp.Provider,
	res ...pulumi.Resource) (*cloudrun.Service, error) {
	gcpCfg := config.New(ctx, "gcp")
	crCfg := config.New(ctx, "cloudrun")

	region := gcpCfg.Require("region")
	minScale := crCfg.Require("minScale")
	maxScale := crCfg.Require("maxScale")
	cpu := crCfg.Require("cpu")
	memory := crCfg.Require("memory")
	concurrency := crCfg.Require("concurrency")
	timeout, _ := strconv.Atoi(crCfg.Require("timeout"))

	return cloudrun.NewService(ctx, "proxyService", &cloudrun.ServiceArgs{
		Location: pulumi.String(region),

		Template: &cloudrun.ServiceTemplateArgs{

			Metadata: &cloudrun.ServiceTemplateMetadataArgs{
				// ---- AUTOSCALING + INSTANCE SIZE ----
				Annotations: pulumi.StringMap{
					// Autoscaling bounds
					"autoscaling.knative.dev/minScale": pulumi.String(minScale),
					"autoscaling.knative.dev/maxScale": pulumi.String(maxScale),

					// Instance sizing
					"run.googleapis.com/cpu":    pulumi.String(cpu),
					"run.googleapis.com/memory": pulumi.String(memory),

					// Allow throttling when idle (reduces cost)
					"run.googleapis.com/cpu-throttling": pulumi.String("true"),

					// Set the number of concurrent requests per container
					"run.googleapis.com/container-concurrency": pulumi.String(concurrency),
				},
			},

			Spec: &cloudrun.ServiceTemplateSpecArgs{
				ServiceAccountName: apiSA.Email,
				TimeoutSeconds:     pulumi.Int(timeout),

				Containers: cloudrun.ServiceTemplateSpecContainerArray{
					&cloudrun.ServiceTemplateSpecContainerArgs{
						Image: img.ImageName,
						Ports: cloudrun.ServiceTemplateSpecContainerPortArray{
							&cloudrun.ServiceTemplateSpecContainerPortArgs{
								ContainerPort: pulumi.Int(8080),
							},
						},
						Envs: envs,
					},
				},
			},
		},
	},
		pulumi.Provider(prov),
		pulumi.DependsOn(res),
	)
}

func setIAMAccessPolicy(ctx *pulumi.Context, svc *cloudrun.Service, prov *gcp.Provider) error {
	gcpCfg := config.New(ctx, "gcp")
	region := gcpCfg.Require("region")

	// the proxy enforces firebase tokens itself when AUTH_ENABLED is set
	_, err := cloudrun.NewIamMember(ctx, "publicInvoker", &cloudrun.IamMemberArgs{
		Service:  svc.Name,
		Location: pulumi.String(region),
		Role:     pulumi.String("roles/run.invoker"),
		Member:   pulumi.String("allUsers"),
	},
		pulumi.Provider(prov),
	)
	return err
}
