package httpapi

import (
	"net/http"
	"time"

	"github.com/oshokin/doorwatch/internal/logger"
)

// loggingMiddleware puts a named logger into the request context and logs
// every request once it is served.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithName(r.Context(), "http")

		next.ServeHTTP(w, r.WithContext(ctx))

		logger.DebugKV(ctx, "HTTP request served",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
