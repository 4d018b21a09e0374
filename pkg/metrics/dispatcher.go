package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatcherMetrics records metadata for the outbox dispatcher loop.
type DispatcherMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewDispatcherMetrics registers the dispatcher metrics on the provided registerer.
func NewDispatcherMetrics(reg prometheus.Registerer) *DispatcherMetrics {
	if reg == nil {
		return &DispatcherMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_dispatch_duration_seconds",
		Help:    "Duration of outbox event dispatches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dispatch_success",
		Help: "Successfully dispatched outbox events.",
	}, []string{"event_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dispatch_failure",
		Help: "Failed outbox event dispatches.",
	}, []string{"event_type"})
	reg.MustRegister(duration, success, failure)
	return &DispatcherMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the event type.
func (d *DispatcherMetrics) ObserveDuration(eventType string, elapsed time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(eventType)).Observe(elapsed.Seconds())
}

// IncSuccess increments the success counter for the event type.
func (d *DispatcherMetrics) IncSuccess(eventType string) {
	if d == nil || d.success == nil {
		return
	}
	d.success.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailure increments the failure counter for the event type.
func (d *DispatcherMetrics) IncFailure(eventType string) {
	if d == nil || d.failure == nil {
		return
	}
	d.failure.WithLabelValues(normalizeLabel(eventType)).Inc()
}
