package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
)

type queryService interface {
	Query(ctx context.Context, req dto.QueryRequest) dto.QueryResponse
}

type queryHandlers struct {
	ResponseHandler response.ResponseHandler
	QuerySvc        queryService
}

func NewQueryHandlers(deps *Deps) *queryHandlers {
	return &queryHandlers{
		ResponseHandler: deps.ResponseHandler,
		QuerySvc:        deps.QuerySvc,
	}
}

// Query answers with the envelope even when the pipeline fails; only a
// malformed request is an HTTP error.
func (h *queryHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var body dto.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("Request body is not valid JSON"))
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		h.ResponseHandler.HandleError(w, r, errs.NewValidationError("query is required"))
		return
	}

	resp := h.QuerySvc.Query(r.Context(), body)
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, resp)
}
