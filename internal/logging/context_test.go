package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	// Initially empty.
	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", GraphID(ctx))
	assert.Equal(t, "", Stage(ctx))

	// Set values.
	ctx = WithSessionID(ctx, "session_42")
	ctx = WithGraphID(ctx, "g-123")
	ctx = WithStage(ctx, "layout")

	// Round-trip.
	assert.Equal(t, "session_42", SessionID(ctx))
	assert.Equal(t, "g-123", GraphID(ctx))
	assert.Equal(t, "layout", Stage(ctx))
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := context.Background()
	ctx = WithSessionID(ctx, "session_42")
	ctx = WithGraphID(ctx, "g-abc")
	ctx = WithStage(ctx, "consolidate")

	logger.InfoContext(ctx, "test message")

	output := buf.String()
	assert.Contains(t, output, "session_id=session_42")
	assert.Contains(t, output, "graph_id=g-abc")
	assert.Contains(t, output, "stage=consolidate")
	assert.Contains(t, output, "test message")
}

func TestCorrelationHandlerMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	// Only the session is set; graph and stage should not appear.
	ctx := WithSessionID(context.Background(), "session_only")

	logger.InfoContext(ctx, "partial context")

	output := buf.String()
	assert.Contains(t, output, "session_id=session_only")
	assert.NotContains(t, output, "graph_id")
	assert.NotContains(t, output, "stage=")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.InfoContext(context.Background(), "no context")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.NotContains(t, output, "graph_id")
	assert.Contains(t, output, "no context")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}
