package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/querypilot/querypilot/pkg/infrastructure/metrics"
)

// MetricsMiddleware records request counts and latencies per method/status.
type MetricsMiddleware struct {
	collector metrics.Collector
}

// NewMetricsMiddleware creates a new metrics middleware.
func NewMetricsMiddleware(collector metrics.Collector) *MetricsMiddleware {
	return &MetricsMiddleware{collector: collector}
}

// Handler wraps the next handler with request metrics.
func (m *MetricsMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := m.collector.StartTimer("http_request_duration_seconds")
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := timer.Stop()
		labels := []string{
			"method", r.Method,
			"status", strconv.Itoa(ww.Status()),
		}
		m.collector.IncrementCounter("http_requests_total", labels...)
		m.collector.RecordHistogram("http_request_duration_seconds", duration.Seconds(), labels...)
	})
}
