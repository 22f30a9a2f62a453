package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_requests_total",
			Help: "Requests issued to the remote ticketing service",
		},
		[]string{"operation", "outcome"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_request_duration_seconds",
			Help:    "Duration of remote ticketing service requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"operation"},
	)

	bookingsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_completed_total",
			Help: "Successful ticket mints observed by this client",
		},
	)

	credentialEncodings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_encodings_total",
			Help: "QR credential encodings",
		},
		[]string{"outcome"},
	)
)

// Monitor records client-side activity. It implements ticketing.Sink, so
// it is injected where the old global debug console used to be patched in.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// ObserveRequest implements ticketing.Sink.
func (m *Monitor) ObserveRequest(operation, outcome string, elapsed time.Duration) {
	apiRequests.WithLabelValues(operation, outcome).Inc()
	apiRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())

	if operation == "book" && outcome == "ok" {
		bookingsCompleted.Inc()
	}
}

// TrackEncoding counts credential encodings by outcome.
func (m *Monitor) TrackEncoding(outcome string) {
	credentialEncodings.WithLabelValues(outcome).Inc()
}

// Serve exposes the default registry on addr. Blocks until the listener
// fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
