package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GregMSThompson/mcp-proxy/internal/dto"
	"github.com/GregMSThompson/mcp-proxy/internal/errs"
	"github.com/GregMSThompson/mcp-proxy/internal/metrics"
	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

type toolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (dto.ToolResult, error)
}

type invokerService struct {
	remote  toolCaller
	timeout time.Duration
}

func NewInvokerService(remote toolCaller, timeout time.Duration) *invokerService {
	return &invokerService{remote: remote, timeout: timeout}
}

// Invocation is the outcome of one query's tool calls.
type Invocation struct {
	Result    dto.ToolResult
	Augmented bool
}

func (s *invokerService) Invoke(ctx context.Context, tool string, args map[string]any) (dto.ToolResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := s.remote.CallTool(ctx, tool, args)
	if err != nil {
		return nil, errs.NewToolInvocationError(tool, err)
	}
	return result, nil
}

// InvokeWithAugmentation calls the resolved tool and, for queries spanning
// applications and projects, the other list tool concurrently. Only the
// primary call can fail the request.
func (s *invokerService) InvokeWithAugmentation(ctx context.Context, query string, intent dto.ResolvedIntent) (Invocation, error) {
	aug, ok := AugmentationFor(intent.ToolName, ClassifyResourceKinds(query))
	if !ok {
		result, err := s.Invoke(ctx, intent.ToolName, intent.Arguments)
		return Invocation{Result: result}, err
	}

	log := logger.FromContext(ctx)
	log.Info("multi-intent query, adding secondary call", "tool", intent.ToolName, "secondary", aug.SecondaryTool)

	var primary, secondary dto.ToolResult
	var secondaryErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primary, err = s.Invoke(gctx, intent.ToolName, intent.Arguments)
		return err
	})
	g.Go(func() error {
		secondary, secondaryErr = s.Invoke(gctx, aug.SecondaryTool, map[string]any{})
		return nil
	})
	if err := g.Wait(); err != nil {
		return Invocation{}, err
	}

	if secondaryErr != nil {
		log.Warn("secondary tool call failed, returning primary result only", "tool", aug.SecondaryTool, "error", secondaryErr)
		metrics.RecordAugmentation(false)
		return Invocation{Result: primary}, nil
	}

	metrics.RecordAugmentation(true)
	return Invocation{Result: MergeResults(aug, primary, secondary), Augmented: true}, nil
}
