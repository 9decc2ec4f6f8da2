package vertexclient

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
)

func TestToHistorySplitsLastMessage(t *testing.T) {
	history, last := toHistory([]dto.CompletionMessage{
		{Role: dto.RoleUser, Content: "list projects"},
		{Role: dto.RoleAssistant, Content: "Found 2 project(s)"},
		{Role: dto.RoleUser, Content: "and applications?"},
	})

	if last != "and applications?" {
		t.Fatalf("last mismatch: %q", last)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("role mapping mismatch: %q %q", history[0].Role, history[1].Role)
	}
}

func TestParseTextConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Found "), genai.Text("1 project")}}},
			{Content: nil},
		},
	}
	if got := parseText(resp); got != "Found 1 project" {
		t.Fatalf("text mismatch: %q", got)
	}
	if got := parseText(nil); got != "" {
		t.Fatalf("expected empty text for nil response")
	}
}
