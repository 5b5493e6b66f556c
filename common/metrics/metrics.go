package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow core.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Transition attempts by kind, target state and outcome code
	Transitions *prometheus.CounterVec

	// Transition latency by kind, including document sealing
	TransitionLatency *prometheus.HistogramVec

	// Reference numbers allocated by sequence name
	SequenceAllocations *prometheus.CounterVec

	// Documents sealed by document type
	DocumentsSealed *prometheus.CounterVec

	// Document verifications by result (verified, mismatch, missing)
	Verifications *prometheus.CounterVec

	// Draws conducted and their pool sizes
	Draws        prometheus.Counter
	DrawPoolSize prometheus.Histogram

	// Notifier failures; notifications are fire-and-forget
	NotifyFailures prometheus.Counter

	// Static host information, value is always 1
	HostInfo *prometheus.GaugeVec
}

// New registers all metrics with reg. Use prometheus.DefaultRegisterer in
// services and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_workflow_transitions_total",
			Help: "Workflow transition attempts by kind, target state and outcome",
		}, []string{"kind", "target", "outcome"}), // outcome: "ok" or an error code

		TransitionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_workflow_transition_duration_seconds",
			Help:    "Duration of a workflow transition including document sealing",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),

		SequenceAllocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_sequence_allocations_total",
			Help: "Reference numbers allocated by sequence name",
		}, []string{"name"}),

		DocumentsSealed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_documents_sealed_total",
			Help: "Documents sealed and stored by document type",
		}, []string{"document_type"}),

		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_document_verifications_total",
			Help: "Document verifications by result",
		}, []string{"result"}),

		Draws: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_draws_total",
			Help: "Allotment draws conducted",
		}),

		DrawPoolSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_draw_pool_size",
			Help:    "Number of eligible applications per draw",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),

		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "portal_notify_failures_total",
			Help: "Notifications that could not be delivered",
		}),

		HostInfo: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_host_info",
			Help: "Host the service runs on",
		}, []string{"os", "arch", "go_version", "hostname", "container_runtime"}),
	}

	info := CaptureHostInfo()
	m.HostInfo.WithLabelValues(info.OS, info.Arch, info.GoVersion, info.Hostname, info.ContainerRuntime).Set(1)
	return m
}

// RecordTransition records a transition attempt and its duration
func (m *Metrics) RecordTransition(kind, target, outcome string, d time.Duration) {
	if m != nil {
		m.Transitions.WithLabelValues(kind, target, outcome).Inc()
		m.TransitionLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// RecordSequence records an allocated reference number
func (m *Metrics) RecordSequence(name string) {
	if m != nil {
		m.SequenceAllocations.WithLabelValues(name).Inc()
	}
}

// RecordSeal records a sealed document
func (m *Metrics) RecordSeal(documentType string) {
	if m != nil {
		m.DocumentsSealed.WithLabelValues(documentType).Inc()
	}
}

// RecordVerification records a verification result
func (m *Metrics) RecordVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

// RecordDraw records a conducted draw
func (m *Metrics) RecordDraw(poolSize int) {
	if m != nil {
		m.Draws.Inc()
		m.DrawPoolSize.Observe(float64(poolSize))
	}
}

// RecordNotifyFailure records a dropped notification
func (m *Metrics) RecordNotifyFailure() {
	if m != nil {
		m.NotifyFailures.Inc()
	}
}
