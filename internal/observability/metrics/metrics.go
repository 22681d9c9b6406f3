// Package metrics provides Prometheus instrumentation for bytevault.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification domain metrics
	verificationTotal *prometheus.CounterVec
	matchTotal        *prometheus.CounterVec

	// Import domain metrics
	importItemTotal *prometheus.CounterVec

	// Lookup domain metrics
	lookupTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Verification request counter
	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_request_total",
			Help: "Total number of verification requests",
		},
		[]string{"kind", "result"},
	)

	// Match counter by side and type
	matchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_total",
			Help: "Total number of bytecode matches",
		},
		[]string{"side", "type"},
	)

	// Batch import item counter
	importItemTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_item_total",
			Help: "Total number of batch import items",
		},
		[]string{"status"},
	)

	// Lookup counter
	lookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_total",
			Help: "Total number of lookup requests",
		},
		[]string{"kind", "status"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
