// Package metrics provides Prometheus instrumentation for the storefront.
//
// It pre-defines the HTTP metrics every endpoint needs plus the order and
// payment counters the back-office dashboards graph.
//
// Wire it up once in the server bootstrap:
//
//	r.Use(metrics.Middleware())
//	r.HandleFunc("/metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ─────────────────────────────────────────────
// Built-in HTTP metrics
// ─────────────────────────────────────────────

var (
	// RequestDuration tracks how long each HTTP request takes,
	// broken down by method, route path, and status code.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mazeltote",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts all HTTP requests.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mazeltote",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// RequestInFlight tracks how many requests are currently being served.
	RequestInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mazeltote",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})
)

// ─────────────────────────────────────────────
// Order / payment metrics
// ─────────────────────────────────────────────

var (
	// OrdersCreated counts checkout submissions that produced an order.
	OrdersCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mazeltote",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Total orders created.",
	})

	// PaymentsCaptured counts capture outcomes by final status.
	PaymentsCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mazeltote",
			Subsystem: "payments",
			Name:      "captured_total",
			Help:      "Payment capture attempts by outcome.",
		},
		[]string{"status"}, // "completed" | "failed" | "already_paid"
	)

	// WebhookEvents counts gateway webhook deliveries by handling result.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mazeltote",
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Gateway webhook deliveries by result.",
		},
		[]string{"result"}, // "settled" | "noop" | "unresolved" | "rejected"
	)

	// OrdersExpired counts orders the sweeper transitioned to cancelled.
	OrdersExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mazeltote",
		Subsystem: "orders",
		Name:      "expired_total",
		Help:      "Orders auto-cancelled after the payment window closed.",
	})

	// StockDecrements counts product stock units deducted by settled orders.
	StockDecrements = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mazeltote",
		Subsystem: "catalog",
		Name:      "stock_decrements_total",
		Help:      "Stock units deducted by paid orders.",
	})

	// QueueJobsProcessed counts processed queue jobs by status.
	QueueJobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mazeltote",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total queue jobs processed.",
		},
		[]string{"status"}, // "processed" | "failed"
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry is the Prometheus registry used by the app.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		RequestDuration,
		RequestTotal,
		RequestInFlight,
		OrdersCreated,
		PaymentsCaptured,
		WebhookEvents,
		OrdersExpired,
		StockDecrements,
		QueueJobsProcessed,
	)
}

// Register adds a custom prometheus.Collector to the app registry.
func Register(c prometheus.Collector) error {
	return DefaultRegistry.Register(c)
}

// MustRegister panics if registration fails.
func MustRegister(c ...prometheus.Collector) {
	DefaultRegistry.MustRegister(c...)
}

// ─────────────────────────────────────────────
// HTTP middleware
// ─────────────────────────────────────────────

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records duration, total and in-flight metrics per request.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path // raw path; normalize in high-cardinality APIs

			RequestInFlight.Inc()
			defer RequestInFlight.Dec()

			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rr.status)

			RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
			RequestTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

// Handler exposes the Prometheus metrics page. Mount on GET /metrics.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return h.ServeHTTP
}

// RecordQueueJob records a queue job result.
func RecordQueueJob(status string) {
	QueueJobsProcessed.WithLabelValues(status).Inc()
}
