package middleware

import (
	"net/http"
	"time"

	"github.com/unioneyes/warden/pkg/observability"
)

// Telemetry mirrors per-request metrics onto the OpenTelemetry instruments.
// A nil OTelMetrics disables it, so callers can chain it unconditionally.
func Telemetry(m *observability.OTelMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sr, r)

			m.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, sr.status,
				time.Since(start), r.ContentLength, int64(sr.bytes))
		})
	}
}
