package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/pkg/helpers"
)

type stubCatalog struct {
	tools []dto.ToolDescriptor
	err   error
}

func (s *stubCatalog) GetTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	return s.tools, s.err
}

type fakeSessionStore struct {
	sessions  map[string]*models.SessionContext
	appendErr error
	appends   int
	lastMeta  map[string]any
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.SessionContext{}}
}

func (f *fakeSessionStore) Get(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	sc, ok := f.sessions[sessionID]
	if !ok {
		return nil, errs.NewNotFoundError("session not found")
	}
	return sc, nil
}

func (f *fakeSessionStore) Append(ctx context.Context, sessionID, query, response string, metadata map[string]any) error {
	f.appends++
	f.lastMeta = metadata
	if f.appendErr != nil {
		return f.appendErr
	}
	sc, ok := f.sessions[sessionID]
	if !ok {
		sc = &models.SessionContext{SessionID: sessionID}
		f.sessions[sessionID] = sc
	}
	sc.Conversations = append(sc.Conversations, models.ConversationTurn{Query: query, Response: response, Metadata: metadata})
	return nil
}

func newTestQueryService(llm *fakeCompleter, remote *fakeToolCaller, store *fakeSessionStore) *queryService {
	catalog := &stubCatalog{tools: append(sampleTools(), dto.ToolDescriptor{Name: "get_project"})}
	svc := NewQueryService(
		catalog,
		NewIntentService(llm, "", time.Second, 10),
		NewInvokerService(remote, time.Second),
		NewFormatterService(llm, "", time.Second, 10),
		store,
		10,
	)
	svc.newID = func() string { return "generated-id" }
	return svc
}

func TestQueryListProjectsWithFallback(t *testing.T) {
	// intent resolves, then the formatting call fails
	llm := &fakeCompleter{responses: []string{`{"tool_name": "list_projects", "arguments": {}}`}}
	remote := &fakeToolCaller{results: map[string]dto.ToolResult{
		"list_projects": map[string]any{"results": []any{map[string]any{"id": float64(1), "name": "Alpha"}}},
	}}
	store := newFakeSessionStore()
	svc := newTestQueryService(llm, remote, store)

	ctx, logs := helpers.TestCtxWithLogs(slog.LevelWarn)
	resp := svc.Query(ctx, dto.QueryRequest{Query: "list projects"})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if out := logs.String(); !strings.Contains(out, "primary formatting failed, using fallback") || !strings.Contains(out, "tool=list_projects") {
		t.Fatalf("expected formatting failure to be logged, got %q", out)
	}
	if resp.SessionID != "generated-id" {
		t.Fatalf("expected generated session id, got %q", resp.SessionID)
	}
	if helpers.Value(resp.ToolName) != "list_projects" {
		t.Fatalf("tool name mismatch: %v", resp.ToolName)
	}
	if !strings.Contains(resp.Response, "Found 1 project(s)") || !strings.Contains(resp.Response, "Alpha (ID: 1)") {
		t.Fatalf("unexpected response: %q", resp.Response)
	}
	if resp.Error != nil {
		t.Fatalf("expected nil error, got %q", *resp.Error)
	}
	if store.appends != 1 || store.lastMeta["formatter"] != FormatterFallback || store.lastMeta["tool_name"] != "list_projects" {
		t.Fatalf("turn not persisted as expected: appends=%d meta=%v", store.appends, store.lastMeta)
	}
}

func TestQueryNullToolName(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"tool_name": null, "error": "no match"}`}}
	store := newFakeSessionStore()
	svc := newTestQueryService(llm, &fakeToolCaller{}, store)

	resp := svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "order pizza", SessionID: "s1"})
	if resp.Success {
		t.Fatalf("expected failure")
	}
	if resp.ToolName != nil {
		t.Fatalf("expected nil tool name, got %q", *resp.ToolName)
	}
	if resp.SessionID != "s1" {
		t.Fatalf("session id must be echoed, got %q", resp.SessionID)
	}
	if resp.Error == nil || resp.Response == "" {
		t.Fatalf("failure must carry error and readable response: %+v", resp)
	}
	if store.appends != 0 {
		t.Fatalf("failed queries must not be persisted")
	}
}

func TestQueryToolInvocationFailure(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"tool_name": "get_project", "arguments": {"project_id": 9}}`}}
	remote := &fakeToolCaller{errs: map[string]error{"get_project": errors.New("project 9 not found")}}
	svc := newTestQueryService(llm, remote, newFakeSessionStore())

	resp := svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "show project 9"})
	if resp.Success {
		t.Fatalf("expected failure")
	}
	if helpers.Value(resp.ToolName) != "get_project" {
		t.Fatalf("tool name must be set on invocation failure: %v", resp.ToolName)
	}
	if !strings.Contains(resp.Response, "get_project") || !strings.Contains(helpers.Value(resp.Error), "project 9 not found") {
		t.Fatalf("unexpected failure envelope: %+v", resp)
	}
}

func TestQueryPersistenceFailureIsNotFatal(t *testing.T) {
	llm := &fakeCompleter{responses: []string{`{"tool_name": "list_projects", "arguments": {}}`, "You have no projects."}}
	remote := &fakeToolCaller{results: map[string]dto.ToolResult{"list_projects": map[string]any{"results": []any{}}}}
	store := newFakeSessionStore()
	store.appendErr = errors.New("redis down")
	svc := newTestQueryService(llm, remote, store)

	ctx, logs := helpers.TestCtxWithLogs(slog.LevelError)
	resp := svc.Query(ctx, dto.QueryRequest{Query: "list projects", SessionID: "s1"})
	if !resp.Success || resp.Error != nil {
		t.Fatalf("persistence failure must not surface: %+v", resp)
	}
	if !strings.Contains(logs.String(), "conversation context not saved") {
		t.Fatalf("expected persistence failure to be logged, got %q", logs.String())
	}
	if resp.Response != "You have no projects." {
		t.Fatalf("expected primary formatting, got %q", resp.Response)
	}
}

func TestQueryEmptyCatalogAndCatalogError(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestQueryService(&fakeCompleter{}, &fakeToolCaller{}, store)

	svc.catalog = &stubCatalog{}
	resp := svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "list projects"})
	if resp.Success || helpers.Value(resp.Error) != "No tools available" {
		t.Fatalf("unexpected empty catalog envelope: %+v", resp)
	}

	svc.catalog = &stubCatalog{err: errs.NewCatalogFetchError(errors.New("refused"))}
	resp = svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "list projects"})
	if resp.Success || resp.ToolName != nil || resp.SessionID == "" {
		t.Fatalf("unexpected catalog failure envelope: %+v", resp)
	}
}

func TestQueryPassesHistoryToPrompts(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`{"tool_name": "list_projects", "arguments": {}}`, "first answer",
		`{"tool_name": "list_projects", "arguments": {}}`, "second answer",
	}}
	remote := &fakeToolCaller{results: map[string]dto.ToolResult{"list_projects": map[string]any{"results": []any{}}}}
	store := newFakeSessionStore()
	svc := newTestQueryService(llm, remote, store)

	svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "list projects", SessionID: "s1"})
	svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "again", SessionID: "s1"})

	second := llm.requests[2]
	if len(second.Messages) != 3 {
		t.Fatalf("expected one prior turn plus the query, got %d messages", len(second.Messages))
	}
	if second.Messages[0].Content != "list projects" || second.Messages[1].Content != "first answer" {
		t.Fatalf("history mismatch: %+v", second.Messages[:2])
	}
}

func TestQuerySessionsDoNotShareState(t *testing.T) {
	llm := &fakeCompleter{responses: []string{
		`{"tool_name": "list_projects", "arguments": {}}`, "a",
		`{"tool_name": "list_applications", "arguments": {}}`, "b",
	}}
	remote := &fakeToolCaller{results: map[string]dto.ToolResult{
		"list_projects":     map[string]any{"results": []any{}},
		"list_applications": map[string]any{"applications": []any{}},
	}}
	store := newFakeSessionStore()
	svc := newTestQueryService(llm, remote, store)
	ids := []string{"first", "second"}
	svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	a := svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "list projects"})
	b := svc.Query(helpers.TestCtx(), dto.QueryRequest{Query: "list applications"})
	if a.SessionID == b.SessionID {
		t.Fatalf("expected distinct session ids")
	}
	for _, turn := range store.sessions[a.SessionID].Conversations {
		if turn.Query == "list applications" {
			t.Fatalf("session %s contains a turn from session %s", a.SessionID, b.SessionID)
		}
	}
}
