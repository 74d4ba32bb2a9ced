package metrics

import "github.com/prometheus/client_golang/prometheus"

// Publish results recorded by the outbox publisher.
const (
	PublishOK         = "published"
	PublishRetry      = "retry"
	PublishDeadLetter = "dead_letter"
)

// OutboxMetrics tracks outbox delivery by event type.
type OutboxMetrics struct {
	publish *prometheus.CounterVec
	batch   prometheus.Histogram
}

// NewOutboxMetrics registers the outbox counters on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	publish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_publish_total",
		Help: "Outbox delivery attempts, by event type and result.",
	}, []string{"event_type", "result"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_outbox_batch_size",
		Help:    "Rows claimed per outbox publish batch.",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})
	reg.MustRegister(publish, batch)
	return &OutboxMetrics{publish: publish, batch: batch}
}

// IncPublish counts one delivery attempt.
func (o *OutboxMetrics) IncPublish(eventType, result string) {
	if o == nil || o.publish == nil {
		return
	}
	o.publish.WithLabelValues(normalizeLabel(eventType), result).Inc()
}

// ObserveBatch records how many rows a batch claimed.
func (o *OutboxMetrics) ObserveBatch(size int) {
	if o == nil || o.batch == nil {
		return
	}
	o.batch.Observe(float64(size))
}
