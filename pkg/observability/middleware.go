package observability

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsMiddleware returns middleware that records request metrics.
//
// It captures:
//   - ragd_requests_total (counter): per request with method, route, and status class labels
//   - ragd_request_duration_seconds (histogram): request duration with method and route labels
//
// The route label is normalized to the fixed route set, plus the
// metrics endpoint itself at its configured path, so label cardinality
// stays bounded regardless of request paths.
func MetricsMiddleware(metricsPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := normalizeRoute(r.URL.Path, metricsPath)
			statusClass := strconv.Itoa(sw.status/100) + "xx"

			RequestsTotal.WithLabelValues(r.Method, route, statusClass).Inc()
			RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizeRoute maps a request path onto the service's fixed route set.
func normalizeRoute(path, metricsPath string) string {
	if metricsPath != "" && path == metricsPath {
		return path
	}
	switch path {
	case "/", "/health", "/stats", "/query", "/rebuild-index", "/search":
		return path
	default:
		return "other"
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter, enabling
// http.ResponseController and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
