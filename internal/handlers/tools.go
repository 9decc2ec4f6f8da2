package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type toolCatalog interface {
	GetTools(ctx context.Context) ([]dto.ToolDescriptor, error)
	Invalidate()
	Snapshot() ([]dto.ToolDescriptor, time.Time)
}

type toolHandlers struct {
	ResponseHandler response.ResponseHandler
	Catalog         toolCatalog
}

func NewToolHandlers(deps *Deps) *toolHandlers {
	return &toolHandlers{
		ResponseHandler: deps.ResponseHandler,
		Catalog:         deps.Catalog,
	}
}

func (h *toolHandlers) ToolRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/refresh", h.Refresh)
	return r
}

func (h *toolHandlers) List(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Catalog.GetTools(r.Context()); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, h.toolsResponse())
}

func (h *toolHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	h.Catalog.Invalidate()
	if _, err := h.Catalog.GetTools(r.Context()); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	resp := h.toolsResponse()
	logger.FromContext(r.Context()).Info("tool catalog refreshed", "count", resp.Count)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, resp)
}

func (h *toolHandlers) toolsResponse() dto.ToolsResponse {
	tools, refreshedAt := h.Catalog.Snapshot()
	if tools == nil {
		tools = []dto.ToolDescriptor{}
	}
	return dto.ToolsResponse{
		Tools:       tools,
		Count:       len(tools),
		RefreshedAt: refreshedAt,
	}
}
