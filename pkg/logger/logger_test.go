package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONAndServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("support", "info", &buf)

	l.Info("hello", slog.String("k", "v"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "support", entry["service"])
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("support", "warn", &buf)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, CorrelationIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithUserID(ctx, "user-1")

	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
	assert.Equal(t, "user-1", UserIDFromContext(ctx))
}

func TestFromContext_Fallback(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	l := NewWithWriter("support", "info", &buf)
	ctx := NewContext(context.Background(), l)
	assert.Equal(t, l, FromContext(ctx))
}

func TestWithContext_Enrichment(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter("support", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-9")
	ctx = WithUserID(ctx, "user-9")

	WithContext(ctx, base).Info("enriched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-9", entry["correlation_id"])
	assert.Equal(t, "user-9", entry["user_id"])
}
