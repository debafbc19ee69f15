package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBuffer(t *testing.T, enabled bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: enabled}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	buf.Reset()
	return &buf
}

func TestStartSpan_Enabled(t *testing.T) {
	buf := setupBuffer(t, true)

	ctx, end := StartSpan(context.Background(), "prediction", "classify")
	span, ok := SpanFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "classify", span.Operation)

	end(errors.New("upstream status 503"))

	out := buf.String()
	assert.Contains(t, out, "span start")
	assert.Contains(t, out, "span end")
	assert.Contains(t, out, "upstream status 503")
	assert.Contains(t, out, "level=WARN")
}

func TestStartSpan_Disabled(t *testing.T) {
	buf := setupBuffer(t, false)

	ctx, end := StartSpan(context.Background(), "prediction", "classify")
	end(nil)

	_, ok := SpanFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, buf.String())
	assert.False(t, Enabled())
}

func TestRecordMetric(t *testing.T) {
	buf := setupBuffer(t, true)

	RecordMetric(context.Background(), "http.requests", 1, map[string]string{
		"status": "200",
		"method": "POST",
	})

	out := buf.String()
	assert.Contains(t, out, "metric=http.requests")
	assert.Contains(t, out, "method=POST status=200")
}
