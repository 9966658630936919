package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mercator-hq/callisto/pkg/telemetry/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
// It forwards Flush so streaming responses stay unbuffered through the
// middleware chain.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// LoggingMiddleware logs each request with method, path, status,
// latency and request ID, and records it in the metrics collector when
// one is configured.
func LoggingMiddleware(logger *slog.Logger, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, startTime)

			rw := newResponseWriter(w)
			requestID := GetRequestID(ctx)

			logger.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
				"origin", r.Header.Get("Origin"),
			)

			next.ServeHTTP(rw, r.WithContext(ctx))

			latency := time.Since(startTime)
			if collector != nil {
				collector.RecordRequest(routeLabel(r.URL.Path), r.Method, rw.statusCode, latency)
			}

			level := slog.LevelInfo
			if rw.statusCode >= 500 {
				level = slog.LevelError
			} else if rw.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", latency.Milliseconds(),
				"request_id", requestID,
			)
		})
	}
}

// routeLabel collapses paths to a fixed label set so metric cardinality
// stays bounded no matter what clients send.
func routeLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/v1")
	switch trimmed {
	case "/chat/completions", "/models", "/completions", "/embeddings":
		return trimmed
	default:
		return "other"
	}
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
