package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/notesync/internal/logfields"
)

// LogContext holds the publish correlation fields carried on a context.
type LogContext struct {
	TaskID     string
	RemotePath string
	Worker     int
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithTaskID adds a sync task ID to the context.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	lc := extractLogContext(ctx)
	lc.TaskID = taskID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithRemotePath adds the destination path of the task being published.
func WithRemotePath(ctx context.Context, remotePath string) context.Context {
	lc := extractLogContext(ctx)
	lc.RemotePath = remotePath
	return context.WithValue(ctx, logContextKey, lc)
}

// WithWorker records which queue worker is handling the context.
func WithWorker(ctx context.Context, worker int) context.Context {
	lc := extractLogContext(ctx)
	lc.Worker = worker
	return context.WithValue(ctx, logContextKey, lc)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

// GetContext returns the structured log context from ctx.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	var attrs []slog.Attr
	if lc.TaskID != "" {
		attrs = append(attrs, slog.String(logfields.KeyTaskID, lc.TaskID))
	}
	if lc.RemotePath != "" {
		attrs = append(attrs, slog.String(logfields.KeyRemotePath, lc.RemotePath))
	}
	if lc.Worker > 0 {
		attrs = append(attrs, slog.Int(logfields.KeyWorker, lc.Worker))
	}
	return attrs
}

func logContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	slog.LogAttrs(ctx, level, msg, append(getLogAttrs(ctx), attrs...)...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelDebug, msg, attrs)
}
