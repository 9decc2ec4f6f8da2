package logger

import (
	"io"
	"log/slog"
)

// NewTestHandler discards everything; tests that assert on log output use
// NewTestHandlerWriter.
func NewTestHandler(level slog.Level) slog.Handler {
	return NewTestHandlerWriter(level, io.Discard)
}

func NewTestHandlerWriter(level slog.Level, out io.Writer) slog.Handler {
	return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
}
