package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	outboxBacklog    prometheus.Gauge
}

// New registers the metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "transitions_total",
		Help:      "State machine operations by operation and result.",
	}, []string{"operation", "result"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parking",
		Name:      "notifications_total",
		Help:      "Notification deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parking",
		Name:      "notification_dispatch_seconds",
		Help:      "Duration of one notification dispatch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event"})
	outboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "parking",
		Name:      "notification_outbox_pending",
		Help:      "Pending outbox rows seen by the last worker pass.",
	})
	reg.MustRegister(transitions, notifications, dispatchDuration, outboxBacklog)
	return &Metrics{
		transitions:      transitions,
		notifications:    notifications,
		dispatchDuration: dispatchDuration,
		outboxBacklog:    outboxBacklog,
	}
}

// Transition counts one state machine operation.
func (m *Metrics) Transition(operation string, err error) {
	if m == nil || m.transitions == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.transitions.WithLabelValues(normalizeLabel(operation), result).Inc()
}

func (m *Metrics) Notification(event, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) ObserveDispatch(event string, duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(normalizeLabel(event)).Observe(duration.Seconds())
}

func (m *Metrics) OutboxBacklog(n int) {
	if m == nil || m.outboxBacklog == nil {
		return
	}
	m.outboxBacklog.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
