package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	prev := Logger()
	buf := &bytes.Buffer{}
	Init(Config{Level: "debug", Service: "course-payments", Output: buf})
	t.Cleanup(func() { SetGlobalLogger(prev) })

	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestFromContext_AddsIDs(t *testing.T) {
	buf := captureLogs(t)

	ctx := NewContextWithIDs(context.Background(), "trace-1", "corr-1")
	ctx = WithPaymentRef(ctx, "order_A", "")
	ctx = WithPaymentRef(ctx, "", "pay_B")

	l := FromContext(ctx)
	l.Info().Msg("Платёж записан")

	entry := lastEntry(t, buf)
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "order_A", entry["order_id"])
	assert.Equal(t, "pay_B", entry["payment_id"])
	assert.Equal(t, "course-payments", entry["service"])
}

func TestFromContext_Empty(t *testing.T) {
	buf := captureLogs(t)

	Ctx(context.Background()).Warn().Msg("без контекста")

	entry := lastEntry(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "order_id")
	assert.Equal(t, "warn", entry["level"])
}

func TestWithLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := zerolog.New(buf).With().Str("component", "refund").Logger()

	l := FromContext(WithLogger(context.Background(), custom))
	l.Error().Msg("ошибка")

	entry := lastEntry(t, buf)
	assert.Equal(t, "refund", entry["component"])
}

func TestCtx_ChainsWithIDs(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithPaymentRef(NewContextWithIDs(context.Background(), "trace-2", ""), "order_C", "")
	Ctx(ctx).Error().Str("topic", "course.events").Msg("Ошибка отправки")

	entry := lastEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "trace-2", entry["trace_id"])
	assert.Equal(t, "order_C", entry["order_id"])
	assert.NotContains(t, entry, "correlation_id")
}
