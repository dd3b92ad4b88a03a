package echoserver

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// serverMetrics records per-request server metrics.
type serverMetrics struct {
	serviceName     string
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
	responseStatus  metric.Int64Counter
}

func newServerMetrics(mp metric.MeterProvider, serviceName string) (*serverMetrics, error) {
	meter := mp.Meter(scope)
	m := &serverMetrics{serviceName: serviceName}

	var err error
	m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.responseStatus, err = meter.Int64Counter(
		"http.server.response.status",
		metric.WithDescription("Count of responses by status code"),
		metric.WithUnit("{response}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Middleware records duration, in-flight count and status per request.
// Routes are not recorded to keep cardinality bounded.
func (m *serverMetrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			base := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.request.method", r.Method),
			)

			m.activeRequests.Add(ctx, 1, base)
			defer m.activeRequests.Add(ctx, -1, base)

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			withStatus := metric.WithAttributes(
				attribute.String("service.name", m.serviceName),
				attribute.String("http.request.method", r.Method),
				attribute.Int("http.response.status_code", wrapped.Status()),
			)
			m.requestDuration.Record(ctx, time.Since(start).Seconds(), withStatus)
			m.responseStatus.Add(ctx, 1, withStatus)
		})
	}
}
