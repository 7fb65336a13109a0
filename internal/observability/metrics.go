package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	deliveriesScheduledTotal  *prometheus.CounterVec
	deliveriesDeliveredTotal  *prometheus.CounterVec
	deliveriesFailedTotal     *prometheus.CounterVec
	deliveryAttemptDuration   *prometheus.HistogramVec
	workerInflight            *prometheus.GaugeVec
	retryScheduledTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "delivery_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		deliveriesScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_engine",
				Name:      "deliveries_scheduled_total",
				Help:      "Total number of deliveries scheduled from ingested events.",
			},
			[]string{"event_type"},
		),
		deliveriesDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_engine",
				Name:      "deliveries_delivered_total",
				Help:      "Total number of deliveries acknowledged by the destination.",
			},
			[]string{"event_type"},
		),
		deliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_engine",
				Name:      "deliveries_failed_total",
				Help:      "Total number of deliveries that ended in a terminal failure state.",
			},
			[]string{"event_type", "reason"},
		),
		deliveryAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "delivery_engine",
				Name:      "delivery_attempt_duration_seconds",
				Help:      "Destination request duration in seconds grouped by event type.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"event_type"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "delivery_engine",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery attempts grouped by event type.",
			},
			[]string{"event_type"},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "delivery_engine",
				Name:      "retry_scheduled_total",
				Help:      "Total number of deliveries scheduled for retry.",
			},
			[]string{"event_type"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.deliveriesScheduledTotal,
		m.deliveriesDeliveredTotal,
		m.deliveriesFailedTotal,
		m.deliveryAttemptDuration,
		m.workerInflight,
		m.retryScheduledTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDeliveryScheduled(eventType string) {
	if m == nil {
		return
	}
	m.deliveriesScheduledTotal.WithLabelValues(normalizeEventType(eventType)).Inc()
}

func (m *Metrics) IncDeliveryDelivered(eventType string) {
	if m == nil {
		return
	}
	m.deliveriesDeliveredTotal.WithLabelValues(normalizeEventType(eventType)).Inc()
}

func (m *Metrics) IncDeliveryFailed(eventType string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.deliveriesFailedTotal.WithLabelValues(normalizeEventType(eventType), reasonLabel).Inc()
}

func (m *Metrics) ObserveAttemptDuration(eventType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.deliveryAttemptDuration.WithLabelValues(normalizeEventType(eventType)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight(eventType string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeEventType(eventType)).Inc()
}

func (m *Metrics) DecWorkerInFlight(eventType string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeEventType(eventType)).Dec()
}

func (m *Metrics) IncRetryScheduled(eventType string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeEventType(eventType)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeEventType(eventType string) string {
	normalized := strings.ToLower(strings.TrimSpace(eventType))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
