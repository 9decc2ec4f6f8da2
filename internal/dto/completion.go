package dto

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the provider-neutral input to a completion adapter.
// Model overrides the adapter default when set.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	MaxTokens int
}
