package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// requestID middleware assigns each request an id, reusing the caller's when
// supplied.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestLogger returns the per-request logger injected by the logging
// middleware, falling back to the process default.
func requestLogger(r *http.Request) logging.Logger {
	if l, ok := r.Context().Value(loggerKey).(logging.Logger); ok {
		return l
	}
	return logging.Default()
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// logRequests injects a request-scoped logger and emits one access entry per
// request.
func logRequests(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLog := log.With(
				logging.String("request_id", RequestIDFromContext(r.Context())),
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
			)
			ctx := context.WithValue(r.Context(), loggerKey, reqLog)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLog.Info("Request handled",
				logging.Int("status", rec.status),
				logging.Duration("duration", time.Since(start)),
			)
		})
	}
}

// recordMetrics observes request counts and latency against the route
// pattern, not the raw path, to keep label cardinality bounded.
func recordMetrics(metrics *prometheus.AppMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			prometheus.RecordHTTPRequest(metrics, r.Method, pattern, rec.status, time.Since(start))
		})
	}
}

// recoverPanics turns handler panics into 500 responses instead of dropped
// connections.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				requestLogger(r).Error("Handler panicked",
					logging.Any("panic", rec),
					logging.String("stack", string(debug.Stack())),
				)
				writeError(w, r, errors.New(errors.ErrCodeInternal, "internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
