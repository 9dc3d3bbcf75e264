// Package requestlog annotates each request's context so every log line
// emitted while handling it carries the request attributes.
package requestlog

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	slogctx "github.com/veqryn/slog-context"
)

// Middleware is an http.Handler middleware that stamps the request
// context with a request ID, method, and path, and logs the request
// once it completes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := slogctx.With(r.Context(),
			"request_id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
		)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		slogctx.Debug(ctx, "Handled request", "duration", time.Since(start))
	})
}
