package middleware

import (
	"context"
	"net/http"
	"time"
)

type contextKey string

const startTimeKey contextKey = "start_time"

// GetStartTime returns the time the logging middleware first saw the
// request, or the zero time outside of it.
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
