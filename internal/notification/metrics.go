package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts notification delivery outcomes.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	// Dropped counts notifications lost to a full async buffer.
	Dropped prometheus.Counter
	// Subscriber drops are counted separately from publisher drops.
	SubscriberDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_notifications_delivered_total",
			Help: "Change notifications delivered by sink",
		}, []string{"sink"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autoshield_notifications_failed_total",
			Help: "Change notification deliveries that failed by sink",
		}, []string{"sink"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_notifications_dropped_total",
			Help: "Change notifications dropped because the publish buffer was full",
		}),
		SubscriberDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autoshield_notifications_subscriber_dropped_total",
			Help: "Change notifications skipped for slow event stream subscribers",
		}),
	}
}

func (m *Metrics) recordDelivered(sink string) {
	if m != nil {
		m.Delivered.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) recordFailed(sink string) {
	if m != nil {
		m.Failed.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) recordSubscriberDropped() {
	if m != nil {
		m.SubscriberDropped.Inc()
	}
}
