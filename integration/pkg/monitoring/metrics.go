package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PromMessagesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forcerelay_messages_submitted_total",
			Help: "IBC messages committed on chain, by message kind",
		},
		[]string{"chainID", "kind"},
	)
	PromSubmissionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forcerelay_submission_failures_total",
			Help: "IBC messages that failed submission or event recovery, by message kind",
		},
		[]string{"chainID", "kind"},
	)
	PromProofBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "forcerelay_proof_build_duration_seconds",
			Help: "Duration of building a verified state proof in seconds",
			Buckets: []float64{
				0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
			},
		},
		[]string{"chainID"},
	)
	PromFinalityVerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forcerelay_finality_verification_failures_total",
			Help: "Blocks whose finality proof failed verification",
		},
		[]string{"chainID"},
	)
	PromEventsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forcerelay_events_observed_total",
			Help: "IBC events delivered by the event monitor, by event kind",
		},
		[]string{"chainID", "kind"},
	)
	PromMonitorHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forcerelay_monitor_height",
			Help: "Last block scanned by the event monitor",
		},
		[]string{"chainID"},
	)
)

// MetricLabeler records adapter metrics for one chain. The zero chain id
// makes every method a no-op.
type MetricLabeler struct {
	chainID string
}

// NewMetricLabeler creates a new metric labeler for chainID.
func NewMetricLabeler(chainID string) *MetricLabeler {
	return &MetricLabeler{chainID: chainID}
}

// NewNoopMetricLabeler creates a labeler that doesn't record metrics.
func NewNoopMetricLabeler() *MetricLabeler {
	return &MetricLabeler{}
}

func (m *MetricLabeler) enabled() bool {
	return m != nil && m.chainID != ""
}

func (m *MetricLabeler) IncrementMessagesSubmitted(kind string) {
	if !m.enabled() {
		return
	}
	PromMessagesSubmitted.WithLabelValues(m.chainID, kind).Inc()
}

func (m *MetricLabeler) IncrementSubmissionFailures(kind string) {
	if !m.enabled() {
		return
	}
	PromSubmissionFailures.WithLabelValues(m.chainID, kind).Inc()
}

// RecordProofBuildDuration records how long a verified proof took to build.
func (m *MetricLabeler) RecordProofBuildDuration(duration time.Duration) {
	if !m.enabled() {
		return
	}
	PromProofBuildDuration.WithLabelValues(m.chainID).Observe(duration.Seconds())
}

func (m *MetricLabeler) IncrementFinalityVerificationFailures() {
	if !m.enabled() {
		return
	}
	PromFinalityVerificationFailures.WithLabelValues(m.chainID).Inc()
}

func (m *MetricLabeler) IncrementEventsObserved(kind string) {
	if !m.enabled() {
		return
	}
	PromEventsObserved.WithLabelValues(m.chainID, kind).Inc()
}

func (m *MetricLabeler) SetMonitorHeight(height uint64) {
	if !m.enabled() {
		return
	}
	PromMonitorHeight.WithLabelValues(m.chainID).Set(float64(height))
}
