// Package monitoring is the Prometheus metrics sink for the ledger and
// classification pipeline. Grounded on the teacher's
// internal/escrow/metrics.go promauto registration idiom, retargeted
// from escrow/trust metrics to ledger append latency, signature
// verification outcomes, storage-tier write outcomes, and stream
// classification throughput.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this service registers.
type Metrics struct {
	EventsAppended       *prometheus.CounterVec
	AppendLatency        *prometheus.HistogramVec
	SignatureVerification *prometheus.CounterVec
	TierWrites           *prometheus.CounterVec
	TierWriteDuration     *prometheus.HistogramVec
	ChainBreaks          prometheus.Counter

	Classifications *prometheus.CounterVec
	ClassifyLatency *prometheus.HistogramVec

	QualitySamples *prometheus.CounterVec
}

// NewMetrics constructs and registers the collectors against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsAppended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_events_appended_total",
				Help: "Total number of ledger events appended, by event type.",
			},
			[]string{"event_type"},
		),
		AppendLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_append_duration_seconds",
				Help:    "End-to-end latency of a single ledger event append.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
		SignatureVerification: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_signature_verifications_total",
				Help: "Signature verification outcomes for critical events.",
			},
			[]string{"event_type", "result"}, // result: valid, invalid
		),
		TierWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_tier_writes_total",
				Help: "Storage-tier write outcomes.",
			},
			[]string{"tier", "result"}, // result: ok, failed
		),
		TierWriteDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_tier_write_duration_seconds",
				Help:    "Duration of a single storage-tier write attempt.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"tier"},
		),
		ChainBreaks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_chain_breaks_total",
				Help: "Number of times chain verification found a broken link.",
			},
		),
		Classifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_classifications_total",
				Help: "Total classification results produced, by result kind.",
			},
			[]string{"kind"},
		),
		ClassifyLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stream_classify_duration_seconds",
				Help:    "End-to-end window-to-result classification latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QualitySamples: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_quality_samples_total",
				Help: "Per-channel signal quality readings, by quality level.",
			},
			[]string{"channel", "level"},
		),
	}
}

// RecordAppend records a successful append's latency.
func (m *Metrics) RecordAppend(eventType string, d time.Duration) {
	m.EventsAppended.WithLabelValues(eventType).Inc()
	m.AppendLatency.WithLabelValues(eventType).Observe(d.Seconds())
}

// RecordSignatureVerification records whether a critical event's
// signature verified.
func (m *Metrics) RecordSignatureVerification(eventType string, valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.SignatureVerification.WithLabelValues(eventType, result).Inc()
}

// RecordTierWrite records a storage-tier write attempt's outcome and
// duration.
func (m *Metrics) RecordTierWrite(tier string, d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.TierWrites.WithLabelValues(tier, result).Inc()
	m.TierWriteDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// RecordChainBreak increments the chain-break counter.
func (m *Metrics) RecordChainBreak() {
	m.ChainBreaks.Inc()
}

// RecordClassification records a single classification result.
func (m *Metrics) RecordClassification(kind string, d time.Duration) {
	m.Classifications.WithLabelValues(kind).Inc()
	m.ClassifyLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordQualitySample records one per-channel signal-quality reading.
func (m *Metrics) RecordQualitySample(channel, level string) {
	m.QualitySamples.WithLabelValues(channel, level).Inc()
}
