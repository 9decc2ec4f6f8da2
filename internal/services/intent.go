package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type completer interface {
	Complete(ctx context.Context, req dto.CompletionRequest) (string, error)
}

const intentMaxTokens = 1000

// Category order in the rendered catalog.
var toolCategories = []struct {
	prefix string
	title  string
}{
	{"list_", "List / retrieve collections"},
	{"get_", "Get a single item"},
	{"create_", "Create"},
	{"update_", "Update"},
	{"delete_", "Delete"},
}

const otherCategory = "Other operations"

const selectorSystemPrompt = `You are a tool selector for SD Elements operations.
Given a user's natural language query and the conversation so far, determine which tool should be called and with what arguments.

IMPORTANT RULES:
1. Prefer retrieval tools (list_*, get_*) when the user asks to "show", "list", "find" or "what are" something. Only choose report-generation or export tools when the user explicitly asks for a report or an export.
2. For create_project: if the query doesn't specify an application, infer it from the conversation or the project name only when exactly one application clearly matches. Otherwise omit application_id and let the tool resolve it.
3. Only fill a parent resource id (business unit, application, project) from the conversation history when the reference is unambiguous, e.g. "the second BU" refers to the second item of the most recent list_business_units answer.
4. Only provide arguments that are explicitly mentioned or that you can reasonably infer. Never invent values for required parameters.

You must respond with ONLY a JSON object in this exact format:
{
    "tool_name": "name_of_tool",
    "arguments": {
        "arg1": "value1"
    }
}

If no tool matches the query, return:
{
    "tool_name": null,
    "arguments": {},
    "error": "No matching tool found"
}`

type intentService struct {
	llm          completer
	model        string
	timeout      time.Duration
	historyTurns int
}

func NewIntentService(llm completer, model string, timeout time.Duration, historyTurns int) *intentService {
	return &intentService{
		llm:          llm,
		model:        model,
		timeout:      timeout,
		historyTurns: historyTurns,
	}
}

type intentPayload struct {
	ToolName  *string        `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Error     string         `json:"error"`
}

// SelectTool maps a query to a tool and arguments. Any failure is an
// IntentResolutionError carrying the raw completion when there was one.
func (s *intentService) SelectTool(ctx context.Context, query string, tools []dto.ToolDescriptor, history []models.ConversationTurn) (dto.ResolvedIntent, error) {
	log := logger.FromContext(ctx)

	req := dto.CompletionRequest{
		Model:     s.model,
		System:    selectorSystemPrompt,
		Messages:  historyMessages(recentTurns(history, s.historyTurns)),
		MaxTokens: intentMaxTokens,
	}
	req.Messages = append(req.Messages, dto.CompletionMessage{
		Role:    dto.RoleUser,
		Content: fmt.Sprintf("Available tools:\n%s\n\nUser query: %s\n\nRespond with JSON only:", RenderToolCatalog(tools), query),
	})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.llm.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dto.ResolvedIntent{}, errs.NewIntentResolutionError(fmt.Sprintf("Tool selection timed out after %s", s.timeout), "", err)
		}
		return dto.ResolvedIntent{}, errs.NewIntentResolutionError("Tool selection failed", "", err)
	}

	intent, err := parseIntent(ctx, raw)
	if err != nil {
		log.Warn("intent resolution failed", "error", err, "raw", raw)
		return dto.ResolvedIntent{}, err
	}

	if !hasTool(tools, intent.ToolName) {
		log.Warn("completion selected unknown tool", "tool", intent.ToolName)
		return dto.ResolvedIntent{}, errs.NewIntentResolutionError(fmt.Sprintf("Tool selection failed: unknown tool %q", intent.ToolName), raw, nil)
	}

	log.Info("intent resolved", "tool", intent.ToolName)
	return intent, nil
}

func parseIntent(ctx context.Context, raw string) (dto.ResolvedIntent, error) {
	object, trailing, err := ExtractJSONObject(raw)
	if err != nil {
		return dto.ResolvedIntent{}, errs.NewIntentResolutionError("Failed to parse tool selection", raw, err)
	}
	if trailing != "" && logger.IsDebugEnabled(ctx) {
		logger.FromContext(ctx).Debug("discarded text after tool selection", "trailing", trailing)
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(object), &payload); err != nil {
		return dto.ResolvedIntent{}, errs.NewIntentResolutionError("Failed to parse tool selection", raw, err)
	}
	if payload.ToolName == nil || strings.TrimSpace(*payload.ToolName) == "" {
		reason := payload.Error
		if reason == "" {
			reason = "No tool selected"
		}
		return dto.ResolvedIntent{}, errs.NewIntentResolutionError("Tool selection failed: "+reason, raw, nil)
	}

	args := payload.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return dto.ResolvedIntent{ToolName: strings.TrimSpace(*payload.ToolName), Arguments: args}, nil
}

// RenderToolCatalog lists tools grouped by operation prefix, each with its
// parameters, types and required markers.
func RenderToolCatalog(tools []dto.ToolDescriptor) string {
	groups := make(map[string][]dto.ToolDescriptor)
	for _, t := range tools {
		title := otherCategory
		for _, c := range toolCategories {
			if strings.HasPrefix(t.Name, c.prefix) {
				title = c.title
				break
			}
		}
		groups[title] = append(groups[title], t)
	}

	titles := make([]string, 0, len(toolCategories)+1)
	for _, c := range toolCategories {
		titles = append(titles, c.title)
	}
	titles = append(titles, otherCategory)

	var b strings.Builder
	for _, title := range titles {
		group := groups[title]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Name < group[j].Name })

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n", title)
		for _, t := range group {
			renderTool(&b, t)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTool(b *strings.Builder, t dto.ToolDescriptor) {
	fmt.Fprintf(b, "- %s: %s\n", t.Name, t.Description)
	props := t.InputSchema.Properties
	if len(props) == 0 {
		return
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteString("  Parameters:\n")
	for _, name := range names {
		p := props[name]
		typ := p.Type
		if typ == "" {
			typ = "unknown"
		}
		marker := ""
		if t.InputSchema.IsRequired(name) {
			marker = " (required)"
		}
		fmt.Fprintf(b, "    - %s (%s)%s: %s\n", name, typ, marker, p.Description)
	}
}

// historyMessages turns each stored turn into a user and an assistant message.
func historyMessages(turns []models.ConversationTurn) []dto.CompletionMessage {
	out := make([]dto.CompletionMessage, 0, len(turns)*2+1)
	for _, t := range turns {
		out = append(out,
			dto.CompletionMessage{Role: dto.RoleUser, Content: t.Query},
			dto.CompletionMessage{Role: dto.RoleAssistant, Content: t.Response},
		)
	}
	return out
}

func recentTurns(turns []models.ConversationTurn, n int) []models.ConversationTurn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func hasTool(tools []dto.ToolDescriptor, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}
