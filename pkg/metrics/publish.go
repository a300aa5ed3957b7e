package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublishMetrics records outcomes of publish submissions and uploads.
type PublishMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
}

// NewPublishMetrics registers the publish metrics on the provided registerer.
func NewPublishMetrics(reg prometheus.Registerer) *PublishMetrics {
	if reg == nil {
		return &PublishMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "Duration of publish submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_success",
		Help: "Successful publish submissions.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_failure",
		Help: "Failed publish submissions.",
	}, []string{"kind", "stage"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_step_retries",
		Help: "Silent retries of individual workflow steps.",
	}, []string{"step"})
	bytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_uploaded_bytes",
		Help: "Bytes pushed to object storage.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure, retries, bytes)
	return &PublishMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
		bytes:    bytes,
	}
}

// ObserveDuration records the duration of a submission for the entity kind.
func (p *PublishMetrics) ObserveDuration(kind string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the entity kind.
func (p *PublishMetrics) IncSuccess(kind string) {
	if p == nil || p.success == nil {
		return
	}
	p.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the entity kind and stage.
func (p *PublishMetrics) IncFailure(kind, stage string) {
	if p == nil || p.failure == nil {
		return
	}
	p.failure.WithLabelValues(normalizeLabel(kind), normalizeLabel(stage)).Inc()
}

// IncRetry increments the retry counter for the named workflow step.
func (p *PublishMetrics) IncRetry(step string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(normalizeLabel(step)).Inc()
}

// AddUploadedBytes accumulates uploaded payload size for the entity kind.
func (p *PublishMetrics) AddUploadedBytes(kind string, n int64) {
	if p == nil || p.bytes == nil || n <= 0 {
		return
	}
	p.bytes.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
