package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/chatproxy/pkg/proxy"
)

// RecoveryMiddleware turns a handler panic into a 500 {"error": ...}
// response. The panic value and stack are logged but never sent to the
// client. http.ErrAbortHandler is re-raised so the server aborts the
// connection as intended.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			_ = proxy.WriteError(w, &proxy.ErrorResponse{
				StatusCode: http.StatusInternalServerError,
				Message:    "internal server error",
			})
		}()

		next.ServeHTTP(w, r)
	})
}
