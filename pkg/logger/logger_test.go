package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return New(slog.New(h)), &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestFieldsLandOnTheRecord(t *testing.T) {
	l, buf := capture()

	l.Info("request served",
		String("method", "GET"),
		Int("status", 200),
		Int64("user_id", 42),
		Bool("cached", true),
		Duration("took", 150*time.Millisecond),
	)

	line := lastLine(t, buf)
	assert.Equal(t, "request served", line["msg"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, float64(42), line["user_id"])
	assert.Equal(t, true, line["cached"])
}

func TestErrFieldFormatsErrors(t *testing.T) {
	l, buf := capture()

	l.Error("probe failed", Err(errors.New("connection refused")))

	line := lastLine(t, buf)
	assert.Equal(t, "connection refused", line["error"])
}

func TestErrFieldHandlesNil(t *testing.T) {
	l, buf := capture()

	l.Warn("odd but harmless", Err(nil))

	line := lastLine(t, buf)
	_, present := line["error"]
	assert.True(t, present)
	assert.Nil(t, line["error"])
}

func TestWithPinsFieldsOnEveryLine(t *testing.T) {
	l, buf := capture()

	l.With(String("component", "http")).Info("started")

	line := lastLine(t, buf)
	assert.Equal(t, "http", line["component"])
}

func TestNewNilFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, New(nil))
	assert.NotNil(t, Default())
}
