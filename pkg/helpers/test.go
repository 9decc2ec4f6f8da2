package helpers

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/GregMSThompson/mcp-proxy/pkg/logger"
)

// TestCtx returns a context carrying a discarding test logger.
func TestCtx() context.Context {
	log := slog.New(logger.NewTestHandler(slog.LevelInfo))
	return logger.ToContext(context.Background(), log)
}

// LogBuffer collects log output; safe for concurrent writers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestCtxWithLogs returns a context whose logger writes text records at or
// above level into the returned buffer.
func TestCtxWithLogs(level slog.Level) (context.Context, *LogBuffer) {
	buf := new(LogBuffer)
	log := slog.New(logger.NewTestHandlerWriter(level, buf))
	return logger.ToContext(context.Background(), log), buf
}
