package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
)

type sessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.SessionContext, error)
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type sessionHandlers struct {
	ResponseHandler response.ResponseHandler
	Sessions        sessionStore
}

func NewSessionHandlers(deps *Deps) *sessionHandlers {
	return &sessionHandlers{
		ResponseHandler: deps.ResponseHandler,
		Sessions:        deps.Sessions,
	}
}

func (h *sessionHandlers) SessionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{sessionID}", h.Get)
	r.Delete("/{sessionID}", h.Delete)
	return r
}

func (h *sessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, sc)
}

func (h *sessionHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
