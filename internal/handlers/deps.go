package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/mcp-proxy/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	QuerySvc        queryService
	Catalog         toolCatalog
	Sessions        sessionStore
	MCP             pinger
	SDEHost         string
	MCPServerURL    string
}
