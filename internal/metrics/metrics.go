package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesSent    *prometheus.CounterVec
	MessagesFailed  *prometheus.CounterVec
	MessagesSkipped prometheus.Counter
	SendLatency     *prometheus.HistogramVec
	CodesAllocated  *prometheus.CounterVec
	QueueDepthUrgent prometheus.Gauge
	QueueDepthNormal prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of successfully delivered messages.",
		}, []string{"channel"}),

		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_failed_total",
			Help: "Total number of failed delivery attempts.",
		}, []string{"channel"}),

		MessagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_skipped_total",
			Help: "Total number of recipients skipped before dispatch (quota denied or ledger unavailable).",
		}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "message_send_seconds",
			Help:    "Delivery latency from dispatch to provider ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		CodesAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codes_allocated_total",
			Help: "Total number of redemption codes allocated, by product.",
		}, []string{"product_id"}),

		QueueDepthUrgent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_urgent",
			Help: "Current number of items in the urgent work queue.",
		}),
		QueueDepthNormal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of items in the normal work queue.",
		}),
	}

	reg.MustRegister(
		m.MessagesSent,
		m.MessagesFailed,
		m.MessagesSkipped,
		m.SendLatency,
		m.CodesAllocated,
		m.QueueDepthUrgent,
		m.QueueDepthNormal,
	)

	return m
}

// DispatcherHooks returns the metric callbacks expected by dispatcher.MetricHooks.
// Centralises the prometheus observation calls so the dispatcher stays import-free.
func (m *Metrics) DispatcherHooks() (
	onSent func(domain.Channel, time.Duration),
	onFailed func(domain.Channel),
) {
	onSent = func(ch domain.Channel, latency time.Duration) {
		m.MessagesSent.WithLabelValues(string(ch)).Inc()
		m.SendLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
	}
	onFailed = func(ch domain.Channel) {
		m.MessagesFailed.WithLabelValues(string(ch)).Inc()
	}
	return
}

// OnSkipped is the fan-out orchestrator's skip callback.
func (m *Metrics) OnSkipped(domain.Channel) {
	m.MessagesSkipped.Inc()
}

// OnAllocated is the allocator's per-code callback.
func (m *Metrics) OnAllocated(productID string) {
	m.CodesAllocated.WithLabelValues(productID).Inc()
}

// SetQueueDepths records the current tier depths. Sampled periodically
// rather than on every enqueue/dequeue to keep the hot path free of
// metric writes.
func (m *Metrics) SetQueueDepths(urgent, normal int) {
	m.QueueDepthUrgent.Set(float64(urgent))
	m.QueueDepthNormal.Set(float64(normal))
}
