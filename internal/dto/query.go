package dto

import "time"

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is returned for every query, including failed ones.
// SessionID is always populated so the caller can continue the conversation.
type QueryResponse struct {
	Response  string  `json:"response"`
	Success   bool    `json:"success"`
	SessionID string  `json:"session_id"`
	ToolName  *string `json:"tool_name"`
	Error     *string `json:"error"`
}

type ToolsResponse struct {
	Tools       []ToolDescriptor `json:"tools"`
	Count       int              `json:"count"`
	RefreshedAt time.Time        `json:"refreshed_at"`
}

type HealthResponse struct {
	Status                string `json:"status"`
	Service               string `json:"service"`
	MCPServerConnected    bool   `json:"mcp_server_connected"`
	SessionStoreConnected bool   `json:"session_store_connected"`
}

type InstanceResponse struct {
	InstanceName string `json:"instance_name"`
	InstanceURL  string `json:"instance_url"`
}
