package middleware

import (
	"net/http"
	"time"

	"github.com/unioneyes/warden/pkg/observability"
)

// statusRecorder captures the response status and size for the access log
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Logging emits one access log line per request and places a
// request-scoped logger in the context for handlers. The logger carries the
// request ID and, when a span is recording, the trace and span IDs.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := observability.WithLogger(r.Context(), logger)
			reqLogger := observability.FromContext(ctx)
			reqLogger = observability.UpdateLoggerWithTraceContext(ctx, reqLogger)
			ctx = observability.WithLogger(ctx, reqLogger)

			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r.WithContext(ctx))

			reqLogger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sr.status,
				"bytes":       sr.bytes,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}
