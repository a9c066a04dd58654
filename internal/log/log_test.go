package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentHTTP, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerStampsComponent(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelInfo)

	l.Info("hello", FieldUserID, "u1")
	l.WithComponent(ComponentWorker).Warn("careful")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "user_id=u1")
	assert.Contains(t, out, "component=worker")
	assert.NotContains(t, out, "hidden")
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	got := NewFields().
		WithRecord("expense", "e1", "u1").
		WithError(errors.New("boom")).
		ToSlice()

	assert.Equal(t, []any{
		FieldError, "boom",
		FieldRecordID, "e1",
		FieldRecordKind, "expense",
		FieldUserID, "u1",
	}, got)
}

func TestContextLogger(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelDebug)

	fallback := FromContext(context.Background())
	assert.Equal(t, "unknown", fallback.Component())

	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "request_id=req_1")
}

func TestLogHTTPEndLevels(t *testing.T) {
	l, buf := newBufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(l)
	r := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)

	sl.LogHTTPEnd(context.Background(), r, http.StatusInternalServerError, 3, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "status_code=500")
}
