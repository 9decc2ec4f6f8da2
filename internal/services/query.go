package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/metrics"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/pkg/helpers"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type toolCatalog interface {
	GetTools(ctx context.Context) ([]dto.ToolDescriptor, error)
}

type intentResolver interface {
	SelectTool(ctx context.Context, query string, tools []dto.ToolDescriptor, history []models.ConversationTurn) (dto.ResolvedIntent, error)
}

type toolInvoker interface {
	InvokeWithAugmentation(ctx context.Context, query string, intent dto.ResolvedIntent) (Invocation, error)
}

type responseFormatter interface {
	Format(ctx context.Context, tool string, inv Invocation, query string, history []models.ConversationTurn) Formatted
}

type sessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.SessionContext, error)
	Append(ctx context.Context, sessionID, query, response string, metadata map[string]any) error
}

const (
	outcomeSuccess      = "success"
	outcomeNoTools      = "no_tools"
	outcomeCatalogError = "catalog_error"
	outcomeIntentError  = "intent_error"
	outcomeToolError    = "tool_error"
)

type queryService struct {
	catalog      toolCatalog
	intent       intentResolver
	invoker      toolInvoker
	formatter    responseFormatter
	sessions     sessionStore
	historyTurns int
	newID        func() string
	clockNow     func() time.Time
}

func NewQueryService(catalog toolCatalog, intent intentResolver, invoker toolInvoker, formatter responseFormatter, sessions sessionStore, historyTurns int) *queryService {
	return &queryService{
		catalog:      catalog,
		intent:       intent,
		invoker:      invoker,
		formatter:    formatter,
		sessions:     sessions,
		historyTurns: historyTurns,
		newID:        uuid.NewString,
		clockNow:     time.Now,
	}
}

// Query runs one request through intent resolution, tool invocation,
// formatting and persistence. Pipeline failures are reported in the
// envelope; the returned response always carries a session id.
func (s *queryService) Query(ctx context.Context, req dto.QueryRequest) dto.QueryResponse {
	start := s.clockNow()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.newID()
	}
	log, ctx := logger.With(ctx, "session_id", sessionID)

	resp, outcome := s.run(ctx, sessionID, req.Query)
	metrics.RecordQuery(outcome, s.clockNow().Sub(start))
	log.Info("query processed", "outcome", outcome, "tool", helpers.Value(resp.ToolName))
	return resp
}

func (s *queryService) run(ctx context.Context, sessionID, query string) (dto.QueryResponse, string) {
	log := logger.FromContext(ctx)
	history := s.loadHistory(ctx, sessionID)

	tools, err := s.catalog.GetTools(ctx)
	if err != nil {
		return failure(sessionID, nil, err.Error(), err.Error()), outcomeCatalogError
	}
	if len(tools) == 0 {
		return failure(sessionID, nil, "No tools available from MCP server", "No tools available"), outcomeNoTools
	}

	// ResolvingIntent
	intent, err := s.intent.SelectTool(ctx, query, tools, history)
	if err != nil {
		return failure(sessionID, nil, err.Error(), err.Error()), outcomeIntentError
	}

	// InvokingTool
	inv, err := s.invoker.InvokeWithAugmentation(ctx, query, intent)
	if err != nil {
		log.Error("tool call failed", "tool", intent.ToolName, "error", err)
		return failure(sessionID, helpers.Ptr(intent.ToolName),
			fmt.Sprintf("Failed to execute tool '%s': %v", intent.ToolName, err), err.Error()), outcomeToolError
	}

	// Formatting
	formatted := s.formatter.Format(ctx, intent.ToolName, inv, query, history)
	if formatted.Err != nil {
		log.Warn("primary formatting failed, using fallback", "tool", intent.ToolName, "error", formatted.Err)
	}

	// Persisting
	metadata := map[string]any{
		"tool_name": intent.ToolName,
		"arguments": intent.Arguments,
		"success":   true,
		"formatter": formatted.Path,
		"augmented": inv.Augmented,
	}
	if err := s.sessions.Append(ctx, sessionID, query, formatted.Text, metadata); err != nil {
		perr := errs.NewPersistenceError(sessionID, err)
		log.Error("conversation context not saved", "error", perr)
	}

	return dto.QueryResponse{
		Response:  formatted.Text,
		Success:   true,
		SessionID: sessionID,
		ToolName:  helpers.Ptr(intent.ToolName),
	}, outcomeSuccess
}

// loadHistory returns the recent turns for a session. A missing session or
// a read failure yields no history.
func (s *queryService) loadHistory(ctx context.Context, sessionID string) []models.ConversationTurn {
	sc, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		var nf *errs.NotFoundError
		if !errors.As(err, &nf) {
			logger.FromContext(ctx).Warn("session history unavailable", "error", err)
		}
		return nil
	}
	return sc.Recent(s.historyTurns)
}

func failure(sessionID string, tool *string, response, errMsg string) dto.QueryResponse {
	return dto.QueryResponse{
		Response:  response,
		Success:   false,
		SessionID: sessionID,
		ToolName:  tool,
		Error:     helpers.Ptr(errMsg),
	}
}
