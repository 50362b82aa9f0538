package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-level HTTP metrics. Module metrics live with their modules.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

var (
	registerOnce sync.Once
	shared       *Metrics
)

// New creates and registers the HTTP metrics on first use.
func New() *Metrics {
	registerOnce.Do(func() {
		shared = &Metrics{
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "caredesk_http_request_duration_seconds",
				Help:    "HTTP request latency by method, route pattern and status",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "route", "status"}),
			InFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "caredesk_http_requests_in_flight",
				Help: "Number of HTTP requests currently being served",
			}),
		}
	})
	return shared
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Latency records request duration labelled by the chi route pattern, so path
// parameters do not explode cardinality.
func (m *Metrics) Latency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}
