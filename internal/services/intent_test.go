package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/pkg/helpers"
)

type fakeCompleter struct {
	responses []string
	err       error
	block     bool
	requests  []dto.CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req dto.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no responses configured")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func TestSelectToolParsesFencedResponse(t *testing.T) {
	llm := &fakeCompleter{responses: []string{"```json\n{\"tool_name\": \"list_projects\", \"arguments\": {\"page_size\": 5}}\n```\nThis lists projects."}}
	svc := NewIntentService(llm, "selector-model", time.Second, 10)

	intent, err := svc.SelectTool(helpers.TestCtx(), "list projects", sampleTools(), nil)
	if err != nil {
		t.Fatalf("SelectTool error: %v", err)
	}
	if intent.ToolName != "list_projects" {
		t.Fatalf("tool mismatch: %q", intent.ToolName)
	}
	if intent.Arguments["page_size"] != float64(5) {
		t.Fatalf("arguments mismatch: %v", intent.Arguments)
	}
	if llm.requests[0].Model != "selector-model" {
		t.Fatalf("model not forwarded: %q", llm.requests[0].Model)
	}
}

func TestSelectToolDefaultsArguments(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"tool_name": "list_applications"}`}}
	svc := NewIntentService(llm, "", time.Second, 10)

	intent, err := svc.SelectTool(helpers.TestCtx(), "show apps", sampleTools(), nil)
	if err != nil {
		t.Fatalf("SelectTool error: %v", err)
	}
	if intent.Arguments == nil || len(intent.Arguments) != 0 {
		t.Fatalf("expected empty argument map, got %v", intent.Arguments)
	}
}

func TestSelectToolNullToolName(t *testing.T) {
	raw := `{"tool_name": null, "arguments": {}, "error": "no match"}`
	llm := &fakeCompleter{responses: []string{raw}}
	svc := NewIntentService(llm, "", time.Second, 10)

	_, err := svc.SelectTool(helpers.TestCtx(), "order a pizza", sampleTools(), nil)
	var intentErr *errs.IntentResolutionError
	if !errors.As(err, &intentErr) {
		t.Fatalf("expected IntentResolutionError, got %v", err)
	}
	if intentErr.Raw != raw {
		t.Fatalf("raw completion not carried: %q", intentErr.Raw)
	}
	if !strings.Contains(intentErr.Error(), "no match") {
		t.Fatalf("expected reason in message, got %q", intentErr.Error())
	}
}

func TestSelectToolRejectsUnparseableAndUnknown(t *testing.T) {
	for name, raw := range map[string]string{
		"prose":   "I think you want the projects list.",
		"broken":  `{"tool_name": "list_projects", "arguments": {`,
		"unknown": `{"tool_name": "drop_database", "arguments": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewIntentService(&fakeCompleter{responses: []string{raw}}, "", time.Second, 10)
			_, err := svc.SelectTool(helpers.TestCtx(), "q", sampleTools(), nil)
			var intentErr *errs.IntentResolutionError
			if !errors.As(err, &intentErr) {
				t.Fatalf("expected IntentResolutionError, got %v", err)
			}
		})
	}
}

func TestSelectToolTimeout(t *testing.T) {
	svc := NewIntentService(&fakeCompleter{block: true}, "", 20*time.Millisecond, 10)

	_, err := svc.SelectTool(helpers.TestCtx(), "list projects", sampleTools(), nil)
	var intentErr *errs.IntentResolutionError
	if !errors.As(err, &intentErr) {
		t.Fatalf("expected IntentResolutionError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline in chain, got %v", err)
	}
}

func TestSelectToolSendsHistoryAndQueryLast(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"tool_name": "list_projects", "arguments": {}}`}}
	svc := NewIntentService(llm, "", time.Second, 2)
	history := []models.ConversationTurn{
		{Query: "q1", Response: "r1"},
		{Query: "q2", Response: "r2"},
		{Query: "q3", Response: "r3"},
	}

	if _, err := svc.SelectTool(helpers.TestCtx(), "list projects", sampleTools(), history); err != nil {
		t.Fatalf("SelectTool error: %v", err)
	}
	msgs := llm.requests[0].Messages
	if len(msgs) != 5 {
		t.Fatalf("expected 2 turns x 2 messages + query, got %d", len(msgs))
	}
	if msgs[0].Content != "q2" || msgs[1].Role != dto.RoleAssistant || msgs[1].Content != "r2" {
		t.Fatalf("history mismatch: %+v", msgs[:2])
	}
	last := msgs[len(msgs)-1]
	if last.Role != dto.RoleUser || !strings.Contains(last.Content, "User query: list projects") {
		t.Fatalf("query must be the last user message: %+v", last)
	}
}

func TestRenderToolCatalogGroupsByPrefix(t *testing.T) {
	out := RenderToolCatalog([]dto.ToolDescriptor{
		{Name: "generate_report", Description: "Build a report"},
		{Name: "create_project", Description: "Create a project", InputSchema: dto.ToolInputSchema{
			Properties: map[string]dto.ToolProperty{"name": {Type: "string", Description: "Project name"}},
			Required:   []string{"name"},
		}},
		{Name: "list_projects", Description: "List projects"},
		{Name: "get_project", Description: "Get a project"},
	})

	order := []string{"## List", "list_projects", "## Get", "get_project", "## Create", "create_project", "## Other", "generate_report"}
	pos := -1
	for _, want := range order {
		idx := strings.Index(out, want)
		if idx < 0 {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
		if idx < pos {
			t.Fatalf("%q out of order in:\n%s", want, out)
		}
		pos = idx
	}
	if !strings.Contains(out, "- name (string) (required): Project name") {
		t.Fatalf("parameter line missing:\n%s", out)
	}
}
