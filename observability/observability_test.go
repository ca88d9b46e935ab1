package observability_test

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fronzbot/blinkgo/observability"
)

func TestNoopLogger(t *testing.T) {
	t.Parallel()

	logger := observability.NoopLogger()

	// All methods should execute without panicking
	logger.Debug("test debug")
	logger.Info("test info")
	logger.Warn("test warn")
	logger.Error("test error")

	// With should return a logger
	newLogger := logger.With(observability.Field{Key: "key", Value: "value"})
	require.NotNil(t, newLogger)

	// With'd logger should also work
	newLogger.Info("test with logger")
}

func TestNoopMetricsRecorder(t *testing.T) {
	t.Parallel()

	metrics := observability.NoopMetricsRecorder()

	metrics.RecordHTTPRequest("GET", "/networks", 200, time.Millisecond)
	metrics.RecordRetry(1, "/networks")
	metrics.RecordRateLimit("/networks", time.Millisecond)
	metrics.RecordCommandPoll("arm", 1)
	metrics.RecordError("query", "NetworkError")
}

func TestField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field observability.Field
		key   string
		value any
	}{
		{
			name:  "string value",
			field: observability.Field{Key: "name", Value: "test"},
			key:   "name",
			value: "test",
		},
		{
			name:  "int value",
			field: observability.Field{Key: "count", Value: 42},
			key:   "count",
			value: 42,
		},
		{
			name:  "nil value",
			field: observability.Field{Key: "null", Value: nil},
			key:   "null",
			value: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.key, tt.field.Key)
			assert.Equal(t, tt.value, tt.field.Value)
		})
	}
}

func TestSlogLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := observability.NewSlogLogger(slog.New(handler))

	logger.Info("camera refreshed", observability.Field{Key: "camera", Value: "front door"})

	out := buf.String()
	assert.Contains(t, out, "camera refreshed")
	assert.Contains(t, out, "front door")

	buf.Reset()
	logger.With(observability.Field{Key: "network", Value: 1234}).Debug("polling command")
	out = buf.String()
	assert.Contains(t, out, "polling command")
	assert.Contains(t, out, "network=1234")
}

func TestSlogLoggerNilDefault(t *testing.T) {
	t.Parallel()

	logger := observability.NewSlogLogger(nil)
	require.NotNil(t, logger)
	logger.Debug("should not panic")
}
