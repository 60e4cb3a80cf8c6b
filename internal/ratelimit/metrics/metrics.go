package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejections *prometheus.CounterVec
	// Checks answered by the in-memory fallback while the shared store is failing.
	Degraded prometheus.Counter
	Errors   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter by scope",
		}, []string{"scope"}),
		Degraded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_ratelimit_degraded_checks_total",
			Help: "Rate limit checks served by the in-memory fallback",
		}),
		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_ratelimit_store_errors_total",
			Help: "Rate limit store failures",
		}),
	}
}

func (m *Metrics) IncrementRejections(scope string) {
	if m != nil {
		m.Rejections.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) IncrementDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

func (m *Metrics) IncrementErrors() {
	if m != nil {
		m.Errors.Inc()
	}
}
