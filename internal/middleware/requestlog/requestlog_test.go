package requestlog_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slogctx "github.com/veqryn/slog-context"

	"github.com/instapipe/dm-manager/internal/middleware/requestlog"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer

	handler := slogctx.NewHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), nil)
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	defer slog.SetDefault(prev)

	var calledNextHandler bool

	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		calledNextHandler = true
		slogctx.Info(r.Context(), "inside handler")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/send-message", nil)

	requestlog.Middleware(next).ServeHTTP(rec, req)

	require.True(t, calledNextHandler)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes()[:bytes.IndexByte(buf.Bytes(), '\n')], &entry))

	assert.Equal(t, "inside handler", entry["msg"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/send-message", entry["path"])
	assert.NotEmpty(t, entry["request_id"])
}
