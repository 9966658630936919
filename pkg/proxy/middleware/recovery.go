package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/callisto/pkg/proxy/types"
)

// RecoveryMiddleware converts handler panics into 500 proxy_error
// responses. The panic and stack are logged; the client only sees a
// generic message.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic in handler",
						"error", err,
						"request_id", GetRequestID(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					types.WriteError(w, types.NewInternalError(
						"an internal error occurred",
					))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
