package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderVertex    = "vertex"
	ProviderAzure     = "azopenai"

	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

type Config struct {
	Port     string
	LogLevel string

	MCPServerURL string
	ToolCacheTTL time.Duration

	CompletionProvider string
	// SelectionModel is used for intent resolution, FormattingModel for answers.
	SelectionModel  string
	FormattingModel string

	AnthropicAPIKey       string
	AnthropicAPIKeySecret string
	AnthropicBaseURL      string

	ProjectID   string
	Region      string
	VertexModel string

	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string

	SessionBackend      string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	SessionTTL          time.Duration
	SessionMaxTurns     int
	SessionHistoryTurns int
	KMSKeyName          string

	IntentTimeout time.Duration
	ToolTimeout   time.Duration
	FormatTimeout time.Duration

	AuthEnabled bool
	CORSOrigins []string
	SDEHost     string
}

func New() *Config {
	return &Config{
		Port:     getEnv("PORT", "8002"),
		LogLevel: os.Getenv("LOGLEVEL"),

		MCPServerURL: getEnv("MCP_SERVER_URL", "http://localhost:8001/mcp"),
		ToolCacheTTL: getEnvDuration("TOOL_CACHE_TTL", 5*time.Minute),

		CompletionProvider: strings.ToLower(getEnv("COMPLETION_PROVIDER", ProviderAnthropic)),
		SelectionModel:     getEnv("CLAUDE_TOOL_SELECTION_MODEL", "claude-3-5-haiku-20241022"),
		FormattingModel:    getEnv("CLAUDE_MODEL", "claude-3-5-haiku-20241022"),

		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicAPIKeySecret: os.Getenv("ANTHROPIC_API_KEY_SECRET"),
		AnthropicBaseURL:      os.Getenv("ANTHROPIC_BASE_URL"),

		ProjectID:   os.Getenv("PROJECTID"),
		Region:      os.Getenv("REGION"),
		VertexModel: os.Getenv("VERTEXMODEL"),

		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_KEY"),
		AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),

		SessionBackend:      strings.ToLower(getEnv("SESSION_BACKEND", BackendRedis)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionMaxTurns:     getEnvInt("SESSION_MAX_TURNS", 50),
		SessionHistoryTurns: getEnvInt("SESSION_HISTORY_TURNS", 10),
		KMSKeyName:          os.Getenv("KMSKEYNAME"),

		IntentTimeout: getEnvDuration("INTENT_TIMEOUT", 30*time.Second),
		ToolTimeout:   getEnvDuration("TOOL_TIMEOUT", 30*time.Second),
		FormatTimeout: getEnvDuration("FORMAT_TIMEOUT", 10*time.Second),

		AuthEnabled: getEnvBool("AUTH_ENABLED", false),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
		SDEHost:     os.Getenv("SDE_HOST"),
	}
}

// Validate checks the settings that would otherwise fail on first request.
func (c *Config) Validate() error {
	if c.MCPServerURL == "" {
		return fmt.Errorf("MCP_SERVER_URL cannot be empty")
	}

	switch c.CompletionProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" && c.AnthropicAPIKeySecret == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY or ANTHROPIC_API_KEY_SECRET is required")
		}
	case ProviderVertex:
		if c.ProjectID == "" || c.Region == "" || c.VertexModel == "" {
			return fmt.Errorf("PROJECTID, REGION and VERTEXMODEL are required for the vertex provider")
		}
	case ProviderAzure:
		if c.AzureEndpoint == "" || c.AzureAPIKey == "" || c.AzureDeployment == "" {
			return fmt.Errorf("AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_KEY and AZURE_OPENAI_DEPLOYMENT are required")
		}
	default:
		return fmt.Errorf("unsupported COMPLETION_PROVIDER %q", c.CompletionProvider)
	}

	switch c.SessionBackend {
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	case BackendFirestore:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECTID is required for the firestore session backend")
		}
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}

	if c.SessionMaxTurns <= 0 {
		return fmt.Errorf("SESSION_MAX_TURNS must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// Accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
