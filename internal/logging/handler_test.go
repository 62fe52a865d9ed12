package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accountd", "1.2.3", "json", "info", &buf)

	logger.Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "accountd", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.NotContains(t, entry, "trace_id")
}

func TestSetup_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accountd", "dev", "text", "warn", &buf)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "service=accountd")
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accountd", "dev", "json", "debug", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.With("component", "http").InfoContext(ctx, "traced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	assert.Equal(t, "http", entry["component"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("accountd", "dev", "json", "info", &buf)

	err := oops.Code("ACCOUNT_GET_FAILED").With("account_id", 7).Wrap(errors.New("connection refused"))
	LogError(context.Background(), logger, "lookup failed", err)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "lookup failed", entry["msg"])
	assert.Equal(t, "ACCOUNT_GET_FAILED", entry["code"])
	assert.Contains(t, entry["error"], "connection refused")

	buf.Reset()
	LogError(context.Background(), logger, "plain", errors.New("boom"), "account_id", 3)
	entry = decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 3, entry["account_id"])
}
