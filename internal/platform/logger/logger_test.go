package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DualOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")
	var console bytes.Buffer

	logger := New(Options{
		Env:          "prod",
		ConsoleLevel: "info",
		FileLevel:    "debug",
		File:         logFile,
		App:          "test-app",
		Console:      &console,
	})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	require.NoError(t, Close(logger))

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	fileContent := string(content)

	// File should contain all messages (debug level includes all)
	assert.Contains(t, fileContent, "debug message")
	assert.Contains(t, fileContent, "info message")
	assert.Contains(t, fileContent, "warn message")
	assert.Contains(t, fileContent, `"level":"DEBUG"`)
	assert.Contains(t, fileContent, `"app":"test-app"`)

	assert.NotContains(t, console.String(), "debug message")
	assert.Contains(t, console.String(), "info message")
	assert.Contains(t, console.String(), "warn message")
}

func TestNew_DefaultLevels(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "default.log")
	var console bytes.Buffer

	logger := New(Options{Env: "prod", File: logFile, App: "test-app", Console: &console})
	require.NotNil(t, logger)

	logger.Debug("debug message")
	logger.Info("info message")
	require.NoError(t, Close(logger))

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	assert.Contains(t, string(content), "debug message", "default file level should include debug")
	assert.Contains(t, string(content), "info message")
	assert.NotContains(t, console.String(), "debug message", "default console level is info")
}

func TestNew_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger := New(Options{Env: "dev", ConsoleLevel: "warn", App: "test-app", Console: &console})

	logger.Info("hidden")
	logger.Warn("database is busy", slog.Int("attempt", 2))

	assert.NoError(t, Close(logger))
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "database is busy")
}

func TestRedactingHandler(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "redacted.log")
	var console bytes.Buffer

	logger := New(Options{Env: "prod", File: logFile, App: "test-app", Console: &console})

	logger.Info("open",
		slog.String("password", "hunter2"),
		slog.String("dsn", "file:app.db?_auth_user=admin&_auth_pass=hunter3"),
		slog.String("user", "john"),
	)
	require.NoError(t, Close(logger))

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	for name, out := range map[string]string{"file": string(content), "console": console.String()} {
		assert.NotContains(t, out, "hunter2", name)
		assert.NotContains(t, out, "hunter3", name)
		assert.Contains(t, out, "[REDACTED]", name)
		assert.Contains(t, out, "john", name)
	}
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewRedactingHandler(slog.NewTextHandler(&buf, nil), []string{"Token"})

	slog.New(h).With("token", "abc", "db", "app.db").WithGroup("g").Info("msg")

	assert.NotContains(t, buf.String(), "abc")
	assert.Contains(t, buf.String(), "db=app.db")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestMultiHandler(t *testing.T) {
	var infoBuf, warnBuf bytes.Buffer
	h1 := slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	multi := NewMultiHandler(h1, h2)
	ctx := context.Background()

	assert.True(t, multi.Enabled(ctx, slog.LevelInfo))
	assert.True(t, multi.Enabled(ctx, slog.LevelWarn))
	assert.False(t, multi.Enabled(ctx, slog.LevelDebug))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	require.NoError(t, multi.Handle(ctx, record))
	assert.Contains(t, infoBuf.String(), "msg=test")
	assert.Empty(t, warnBuf.String())

	slog.New(multi.WithAttrs([]slog.Attr{slog.String("key", "value")}).WithGroup("group")).Warn("both", "n", 1)
	assert.Contains(t, infoBuf.String(), "key=value")
	assert.Contains(t, warnBuf.String(), "group.n=1")
}

func TestClose_Unknown(t *testing.T) {
	assert.NoError(t, Close(slog.New(slog.DiscardHandler)))
}
