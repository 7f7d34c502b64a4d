package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records as JSON lines.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testHandler) records(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(h.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogTaskFailed(nil, "task-1", "x", errors.New("boom"))
		LogCallbackPanic(nil, errors.New("boom"))
		LogSlowCallback(nil, "x", time.Second, time.Millisecond)
		LogTrigger(nil, "ev", 1)
		LogBindExpired(nil, "ev", "bind-1")
		LogShutdown(nil, 1, 2)
	})
}

func TestLogTaskFailed(t *testing.T) {
	h := newTestHandler()
	LogTaskFailed(slog.New(h), "task-42", "deliver ready", errors.New("handler exploded"))

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "ERROR", recs[0]["level"])
	assert.Equal(t, "task failed", recs[0]["msg"])
	assert.Equal(t, "task-42", recs[0]["task_id"])
	assert.Equal(t, "deliver ready", recs[0]["task"])
	assert.Equal(t, "handler exploded", recs[0]["error"])
}

func TestLogSlowCallback(t *testing.T) {
	h := newTestHandler()
	LogSlowCallback(slog.New(h), "task main", 150*time.Millisecond, 100*time.Millisecond)

	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "task main", recs[0]["callback"])
	assert.InDelta(t, 150.0, recs[0]["duration_ms"], 0.001)
	assert.InDelta(t, 100.0, recs[0]["threshold_ms"], 0.001)
}

func TestLogTriggerIsDebug(t *testing.T) {
	h := newTestHandler()
	h.level = slog.LevelInfo
	LogTrigger(slog.New(h), "ready", 3)
	assert.Empty(t, h.records(t))

	h.level = slog.LevelDebug
	LogTrigger(slog.New(h), "ready", 3)
	recs := h.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "ready", recs[0]["event"])
	assert.EqualValues(t, 3, recs[0]["deliveries"])
}

func TestLogShutdown(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogShutdown(logger, 0, 2)
	LogShutdown(logger, 3, 64)

	recs := h.records(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "DEBUG", recs[0]["level"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.EqualValues(t, 3, recs[1]["pending"])
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5*time.Millisecond)
}
