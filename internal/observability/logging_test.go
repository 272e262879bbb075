package observability

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/notesync/internal/config"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestContextChaining(t *testing.T) {
	ctx := WithTaskID(context.Background(), "task-1")
	ctx = WithRemotePath(ctx, "notes/a.md")
	ctx = WithWorker(ctx, 2)

	require.Equal(t, LogContext{TaskID: "task-1", RemotePath: "notes/a.md", Worker: 2}, GetContext(ctx))
	require.Equal(t, LogContext{}, GetContext(context.Background()))
}

func TestContextIsolation(t *testing.T) {
	parent := WithTaskID(context.Background(), "task-1")
	child := WithTaskID(parent, "task-2")

	require.Equal(t, "task-1", GetContext(parent).TaskID)
	require.Equal(t, "task-2", GetContext(child).TaskID)
}

func TestContextLoggersIncludeFields(t *testing.T) {
	buf := captureDefault(t)
	ctx := WithRemotePath(WithTaskID(context.Background(), "task-9"), "notes/b.md")

	InfoContext(ctx, "published", slog.String("commit_sha", "C1"))
	WarnContext(ctx, "retrying")
	ErrorContext(ctx, "failed")
	DebugContext(ctx, "detail")

	out := buf.String()
	require.Contains(t, out, "task_id=task-9")
	require.Contains(t, out, "remote_path=notes/b.md")
	require.Contains(t, out, "commit_sha=C1")
	for _, lvl := range []string{"INFO", "WARN", "ERROR", "DEBUG"} {
		require.Contains(t, out, "level="+lvl)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	logger, closer, err := NewLogger(config.LoggingConfig{Level: config.LogLevelWarn, Format: config.LogFormatText}, false)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	ctx := context.Background()
	require.False(t, logger.Enabled(ctx, slog.LevelInfo))
	require.True(t, logger.Enabled(ctx, slog.LevelWarn))

	verbose, _, err := NewLogger(config.LoggingConfig{Level: config.LogLevelError}, true)
	require.NoError(t, err)
	require.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}

func TestNewLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "notesync.log")
	logger, closer, err := NewLogger(config.LoggingConfig{
		Level:  config.LogLevelInfo,
		Format: config.LogFormatJSON,
		File:   path,
	}, false)
	require.NoError(t, err)

	logger.Info("hello", slog.String("remote_path", "notes/a.md"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
	require.Contains(t, string(data), `"remote_path":"notes/a.md"`)
}
