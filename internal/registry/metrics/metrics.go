package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification registry.
type Metrics struct {
	// Write outcomes: committed, unauthorized, invalid_status, error
	WriteOutcome *prometheus.CounterVec

	WriteLatency prometheus.Histogram

	// Lookup latencies by operation: status, history, history_page, count, stats
	LookupLatency *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	// Cache errors by operation, including fallbacks while the breaker is open
	CacheErrors *prometheus.CounterVec
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		WriteOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_registry_writes_total",
			Help: "Registry write attempts by outcome",
		}, []string{"outcome"}),

		WriteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoshield_registry_write_duration_seconds",
			Help:    "Duration of committed registry writes",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		LookupLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoshield_registry_lookup_duration_seconds",
			Help:    "Duration of registry reads by operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_registry_cache_hits_total",
			Help: "Status reads served from Redis",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_registry_cache_misses_total",
			Help: "Status reads that fell through to the record store",
		}),
		CacheErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_registry_cache_errors_total",
			Help: "Redis cache failures by operation",
		}, []string{"operation"}),
	}
}

// IncrementWriteOutcome records the result of a write attempt.
func (m *Metrics) IncrementWriteOutcome(outcome string) {
	if m != nil {
		m.WriteOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveWriteLatency records a committed write's duration.
func (m *Metrics) ObserveWriteLatency(d time.Duration) {
	if m != nil {
		m.WriteLatency.Observe(d.Seconds())
	}
}

// ObserveLookupLatency records a read's duration.
func (m *Metrics) ObserveLookupLatency(operation string, d time.Duration) {
	if m != nil {
		m.LookupLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) RecordCacheError(operation string) {
	if m != nil {
		m.CacheErrors.WithLabelValues(operation).Inc()
	}
}
