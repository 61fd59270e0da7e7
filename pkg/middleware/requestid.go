package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/unioneyes/warden/pkg/observability"
)

// RequestIDHeader carries the request ID on requests and responses
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID, reusing the inbound header when a
// gateway already set one. The ID rides the context into the logger and the
// audit trail and is echoed on the response so clients can quote it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := observability.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
