package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/metrics"
	"github.com/GregMSThompson/mcp-proxy/internal/models"
)

const (
	FormatterPrimary  = "primary"
	FormatterFallback = "fallback"

	formatMaxTokens = 2000
)

const formatterSystemPrompt = `You are a response formatter for SD Elements operations.
You have access to the conversation history above. Use this context to provide more relevant and contextual responses.

Guidelines:
- Be concise but informative
- Highlight key information (IDs, names, URLs, status)
- For lists, show count and key details for each item
- For errors, clearly explain what went wrong
- Use a friendly, professional tone
- Format dates/timestamps in a readable way
- Include relevant URLs when available
- Reference previous operations when relevant (e.g., "As mentioned earlier, 3 answers were deselected")
- FILTERING: When the query asks for items "for" or "associated with" a specific business unit from conversation history:
  * Filter the results to only show items matching that business unit ID
  * Extract the business_unit_id from conversation history (e.g., "second BU" = second item from list_business_units)
  * Only include applications/projects where business_unit.id matches the target BU
- MULTI-PART QUERIES: If the result contains BOTH applications AND projects (check for "applications" and "projects" keys):
  * Format both sections clearly: "Applications:" and "Projects:"
  * Filter both lists by the business unit from conversation history
  * Show count for each section
  * If no items match the filter, clearly state that (e.g., "No applications found for this BU" or "No projects found for this BU")

Respond with ONLY the formatted natural language text, no additional commentary.`

type formatterService struct {
	llm          completer
	model        string
	timeout      time.Duration
	historyTurns int
}

func NewFormatterService(llm completer, model string, timeout time.Duration, historyTurns int) *formatterService {
	return &formatterService{
		llm:          llm,
		model:        model,
		timeout:      timeout,
		historyTurns: historyTurns,
	}
}

// Formatted is the text handed back to the caller plus how it was made.
type Formatted struct {
	Text string
	Path string
	// Err is the primary failure that caused a fallback, if any.
	Err error
}

// Format never fails: a primary failure or timeout falls back to the
// rule-based formatter and is reported through Formatted.Err.
func (s *formatterService) Format(ctx context.Context, tool string, inv Invocation, query string, history []models.ConversationTurn) Formatted {
	text, err := s.FormatPrimary(ctx, tool, inv, query, history)
	if err == nil {
		return Formatted{Text: text, Path: FormatterPrimary}
	}

	var fmtErr *errs.FormattingError
	timeout := errors.As(err, &fmtErr) && fmtErr.Timeout
	metrics.RecordFormatterFallback(timeout)

	text = FallbackFormat(tool, inv.Result)
	if inv.Augmented {
		text = FallbackFormatMerged(inv.Result)
	}
	return Formatted{Text: text, Path: FormatterFallback, Err: err}
}

// FormatPrimary asks the completion service to phrase the result. The call
// is bounded by the configured timeout.
func (s *formatterService) FormatPrimary(ctx context.Context, tool string, inv Invocation, query string, history []models.ConversationTurn) (string, error) {
	req := dto.CompletionRequest{
		Model:     s.model,
		System:    formatterSystemPrompt,
		Messages:  historyMessages(recentTurns(history, s.historyTurns)),
		MaxTokens: formatMaxTokens,
	}
	req.Messages = append(req.Messages, dto.CompletionMessage{
		Role:    dto.RoleUser,
		Content: formatPrompt(tool, inv, query),
	})

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.llm.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errs.NewFormattingTimeout(s.timeout, err)
		}
		return "", errs.NewFormattingError(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errs.NewFormattingError(errors.New("empty completion"))
	}
	return text, nil
}

func formatPrompt(tool string, inv Invocation, query string) string {
	if inv.Augmented {
		return fmt.Sprintf(`Tool: %s (combined with a second list call)
Original user query: %s

Tool result (JSON) - Contains both applications and projects:
%s

Format this result into natural language. The result contains BOTH applications and projects.
Format each section separately. Consider the conversation history above for context and filter each list independently by any business unit mentioned there. If a section has no matching items, say so explicitly.`, tool, query, prettyJSON(inv.Result))
	}
	return fmt.Sprintf(`Tool: %s
Original user query: %s

Tool result (JSON):
%s

Format this result into natural language. Consider the conversation history above for context:`, tool, query, prettyJSON(inv.Result))
}
