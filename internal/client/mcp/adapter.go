package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
)

const (
	clientName    = "mcp-proxy"
	clientVersion = "1.0.0"
)

// session is the subset of *client.Client used by the adapter.
type session interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

type dialFunc func(ctx context.Context) (session, error)

// Adapter talks to the remote tool catalog over streamable HTTP. The
// connection is opened lazily and dropped after a transport failure so the
// next call reconnects.
type Adapter struct {
	dial dialFunc
	log  *slog.Logger

	mu   sync.Mutex
	conn session
}

func NewAdapter(log *slog.Logger, serverURL string) *Adapter {
	return &Adapter{
		log:  log,
		dial: func(ctx context.Context) (session, error) { return dial(ctx, serverURL) },
	}
}

func dial(ctx context.Context, serverURL string) (session, error) {
	c, err := client.NewStreamableHttpClient(serverURL)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (a *Adapter) session(ctx context.Context) (session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return a.conn, nil
	}
	conn, err := a.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to mcp server: %w", err)
	}
	a.conn = conn
	return conn, nil
}

func (a *Adapter) reset(conn session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == conn {
		_ = a.conn.Close()
		a.conn = nil
	}
}

func (a *Adapter) ListTools(ctx context.Context) ([]dto.ToolDescriptor, error) {
	conn, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	res, err := conn.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		a.reset(conn)
		return nil, fmt.Errorf("list tools: %w", err)
	}

	out := make([]dto.ToolDescriptor, 0, len(res.Tools))
	for _, tool := range res.Tools {
		out = append(out, toDescriptor(tool))
	}
	return out, nil
}

// CallTool invokes a remote tool. A result flagged isError is returned as
// an error carrying the tool's text output.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (dto.ToolResult, error) {
	conn, err := a.session(ctx)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := conn.CallTool(ctx, req)
	if err != nil {
		a.reset(conn)
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}

	text := joinText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, fmt.Errorf("tool %s failed: %s", name, text)
	}
	return decodeResult(text), nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	conn, err := a.session(ctx)
	if err != nil {
		return err
	}
	if err := conn.Ping(ctx); err != nil {
		a.reset(conn)
		return err
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	if err != nil && a.log != nil {
		a.log.Error("mcp adapter close failed", "error", err)
	}
	return err
}

func toDescriptor(tool mcp.Tool) dto.ToolDescriptor {
	out := dto.ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: dto.ToolInputSchema{
			Type:     tool.InputSchema.Type,
			Required: append([]string(nil), tool.InputSchema.Required...),
		},
	}
	if len(tool.InputSchema.Properties) > 0 {
		out.InputSchema.Properties = make(map[string]dto.ToolProperty, len(tool.InputSchema.Properties))
		for name, raw := range tool.InputSchema.Properties {
			out.InputSchema.Properties[name] = toProperty(raw)
		}
	}
	return out
}

func toProperty(raw any) dto.ToolProperty {
	prop, ok := raw.(map[string]any)
	if !ok {
		return dto.ToolProperty{Type: "any"}
	}
	desc, _ := prop["description"].(string)
	return dto.ToolProperty{Type: schemaType(prop), Description: desc}
}

// schemaType reads "type", falling back to the non-null members of anyOf
// as emitted for optional parameters.
func schemaType(prop map[string]any) string {
	switch t := prop["type"].(type) {
	case string:
		return t
	case []any:
		return joinTypes(t)
	}

	variants, ok := prop["anyOf"].([]any)
	if !ok {
		return "any"
	}
	var types []any
	for _, v := range variants {
		if m, ok := v.(map[string]any); ok {
			if t, ok := m["type"]; ok {
				types = append(types, t)
			}
		}
	}
	if s := joinTypes(types); s != "" {
		return s
	}
	return "any"
}

func joinTypes(types []any) string {
	var names []string
	for _, t := range types {
		if s, ok := t.(string); ok && s != "null" {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func joinText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeResult returns the JSON value in text, or {"raw": text} when the
// tool answered with plain prose.
func decodeResult(text string) dto.ToolResult {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}
	return map[string]any{"raw": text}
}
