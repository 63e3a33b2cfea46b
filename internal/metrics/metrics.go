// Package metrics declares the Prometheus collectors for the service.
// Collectors register with the default registry on import.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// EmailsSent counts recipients accepted by the provider.
	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_emails_sent_total",
			Help: "Recipients accepted by the mail provider",
		},
		[]string{"provider"},
	)

	// Batches counts provider calls by outcome ("success" or "failure").
	Batches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_batches_total",
			Help: "Provider calls made during campaign sends",
		},
		[]string{"result"},
	)

	QuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_quota_remaining",
			Help: "Messages still allowed today",
		},
	)

	AsyncQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_async_queue_depth",
			Help: "Campaign sends waiting for a worker",
		},
	)

	// WebhookEvents counts inbound delivery events; applied is "true" when
	// a log row was updated.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_events_total",
			Help: "Delivery events received from providers",
		},
		[]string{"provider", "event", "applied"},
	)

	BouncesSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_bounces_synced_total",
			Help: "Contacts marked bounced by the bounce sync job",
		},
	)
)

// Result is the label value for a success flag.
func Result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight requests.
// Routes are labelled with the chi pattern to keep cardinality low.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
