package handlers

import (
	"net/http"
	"strings"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/response"
)

const defaultInstanceName = "SD Elements"

type instanceHandlers struct {
	ResponseHandler response.ResponseHandler
	SDEHost         string
	MCPServerURL    string
}

func NewInstanceHandlers(deps *Deps) *instanceHandlers {
	return &instanceHandlers{
		ResponseHandler: deps.ResponseHandler,
		SDEHost:         deps.SDEHost,
		MCPServerURL:    deps.MCPServerURL,
	}
}

func (h *instanceHandlers) Instance(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteJSON(w, r, http.StatusOK, describeInstance(h.SDEHost, h.MCPServerURL))
}

// describeInstance names the backing instance from its host, e.g.
// sde-ent-onyxdrift.sdelab.net becomes "Ent Onyxdrift". Without a host the
// MCP server URL stands in.
func describeInstance(sdeHost, mcpURL string) dto.InstanceResponse {
	if sdeHost == "" {
		url := stripScheme(strings.Replace(mcpURL, "/mcp", "", 1))
		if url == "" {
			url = "Unknown"
		}
		return dto.InstanceResponse{InstanceName: defaultInstanceName, InstanceURL: url}
	}

	url := strings.TrimRight(stripScheme(sdeHost), "/")
	name := defaultInstanceName
	if strings.Contains(url, "sdelab.net") || strings.Contains(url, "sdelements.com") {
		sub, _, _ := strings.Cut(url, ".")
		sub = strings.TrimPrefix(sub, "sde-")
		name = titleWords(strings.ReplaceAll(sub, "-", " "))
	}
	return dto.InstanceResponse{InstanceName: name, InstanceURL: url}
}

func stripScheme(s string) string {
	s = strings.TrimPrefix(s, "http://")
	return strings.TrimPrefix(s, "https://")
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
