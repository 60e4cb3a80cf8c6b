package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Module metrics live with their module.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoshield_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_http_requests_total",
			Help: "HTTP requests by route pattern and status class",
		}, []string{"route", "class"}),
	}
}

// ObserveEndpointLatency records the latency for a route.
func (m *Metrics) ObserveEndpointLatency(route string, d time.Duration) {
	if m != nil {
		m.EndpointLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}

// IncrementRequests counts a finished request by status class ("2xx", "4xx", ...).
func (m *Metrics) IncrementRequests(route string, status int) {
	if m == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	m.RequestsTotal.WithLabelValues(route, class).Inc()
}
