package middleware

import (
	"net/http"

	"github.com/unioneyes/warden/pkg/observability"
)

// Recovery converts a handler panic into a 500 response instead of tearing
// down the connection. The panic and stack are logged with the request
// context.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer observability.RecoverPanicWithCallback(logger, r.Method+" "+r.URL.Path, func() {
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			})

			next.ServeHTTP(w, r)
		})
	}
}
