package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/handlers"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type fakeQueryService struct{}

func (fakeQueryService) Query(ctx context.Context, req dto.QueryRequest) dto.QueryResponse {
	return dto.QueryResponse{Response: "ok", Success: true, SessionID: "generated"}
}

type fakeCatalog struct{}

func (fakeCatalog) GetTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	return []dto.ToolDescriptor{{Name: "list_projects"}}, nil
}
func (fakeCatalog) Invalidate() {}
func (fakeCatalog) Snapshot() ([]dto.ToolDescriptor, time.Time) {
	return []dto.ToolDescriptor{{Name: "list_projects"}}, time.Time{}
}

type fakeSessions struct{}

func (fakeSessions) Get(ctx context.Context, id string) (*models.SessionContext, error) {
	return &models.SessionContext{SessionID: id}, nil
}
func (fakeSessions) Delete(ctx context.Context, id string) error { return nil }
func (fakeSessions) Ping(ctx context.Context) error              { return nil }

func newTestRouter(auth func(http.Handler) http.Handler) http.Handler {
	log := slog.New(logger.NewTestHandler(slog.LevelInfo))
	deps := &handlers.Deps{
		Log:             log,
		ResponseHandler: response.New(log),
		QuerySvc:        fakeQueryService{},
		Catalog:         fakeCatalog{},
		Sessions:        fakeSessions{},
		MCP:             fakeSessions{},
		MCPServerURL:    "http://localhost:8001/mcp",
	}
	return NewRouter(log, deps, Options{CORSOrigins: []string{"*"}, Auth: auth})
}

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestRouterServesQueryEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"list projects"}`))
	newTestRouter(nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: %d", rec.Code)
	}
	var body dto.QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.SessionID != "generated" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
}

func TestRouterQueryBadJSON(t *testing.T) {
	for _, body := range []string{`not json`, ``, `{"query":`, `{"query": 5}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
		newTestRouter(nil).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestRouterAuthGuardsQueryAndSessionsOnly(t *testing.T) {
	r := newTestRouter(denyAll)
	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodPost, "/api/v1/query", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/sessions/abc", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodGet, "/api/v1/tools", http.StatusOK},
		{http.MethodGet, "/api/v1/instance", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"query":"x"}`)))
		if rec.Code != tt.status {
			t.Fatalf("%s %s: got %d want %d", tt.method, tt.path, rec.Code, tt.status)
		}
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	newTestRouter(nil).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin mismatch: %q", got)
	}
}
