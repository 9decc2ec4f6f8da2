package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

const (
	serviceName   = "mcp-proxy"
	healthTimeout = 3 * time.Second
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandlers struct {
	ResponseHandler response.ResponseHandler
	MCP             pinger
	Sessions        pinger
}

func NewHealthHandlers(deps *Deps) *healthHandlers {
	return &healthHandlers{
		ResponseHandler: deps.ResponseHandler,
		MCP:             deps.MCP,
		Sessions:        deps.Sessions,
	}
}

// Health always answers 200 while the process is up; dependency state is
// reported in the body.
func (h *healthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:                "healthy",
		Service:               serviceName,
		MCPServerConnected:    h.ping(ctx, "mcp", h.MCP),
		SessionStoreConnected: h.ping(ctx, "session_store", h.Sessions),
	}
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, resp)
}

func (h *healthHandlers) ping(ctx context.Context, name string, p pinger) bool {
	if p == nil {
		return false
	}
	if err := p.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("health check failed", "dependency", name, "error", err)
		return false
	}
	return true
}
