// Package metrics provides Prometheus metrics for the KYC upload and status flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload kinds used as the "kind" label.
const (
	KindDocument = "document"
	KindFace     = "face"
)

// Outcomes used as the "outcome" label.
const (
	OutcomeSuccess      = "success"
	OutcomeRejected     = "rejected"
	OutcomeTransport    = "transport_error"
	OutcomePrecondition = "precondition"
	OutcomeError        = "error"
)

// Metrics contains the client-side verification metrics.
type Metrics struct {
	UploadsTotal *prometheus.CounterVec // Upload attempts by kind and outcome

	StatusFetchesTotal         *prometheus.CounterVec   // Status checks by outcome
	StatusFetchDurationSeconds prometheus.Histogram     // Status check latency
	UploadDurationSeconds      *prometheus.HistogramVec // Upload latency by kind

	ActivePollers prometheus.Gauge // Pollers currently RUNNING

	TerminalTotal     *prometheus.CounterVec // Terminal snapshots by status
	StaleResultsTotal prometheus.Counter     // Fetch results discarded after Stop
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_uploads_total",
			Help: "Total number of upload attempts by kind and outcome",
		}, []string{"kind", "outcome"}),

		UploadDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycflow_upload_duration_seconds",
			Help:    "Duration of image uploads by kind",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		StatusFetchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_status_fetches_total",
			Help: "Total number of status checks by outcome",
		}, []string{"outcome"}),

		StatusFetchDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycflow_status_fetch_duration_seconds",
			Help:    "Duration of status checks",
			Buckets: prometheus.DefBuckets,
		}),

		ActivePollers: f.NewGauge(prometheus.GaugeOpts{
			Name: "kycflow_active_pollers",
			Help: "Current number of running status pollers",
		}),

		TerminalTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycflow_terminal_snapshots_total",
			Help: "Total number of sessions observed reaching a terminal status",
		}, []string{"status"}),

		StaleResultsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "kycflow_stale_results_total",
			Help: "Total number of status results discarded because the poller was stopped",
		}),
	}
}

// ObserveUpload records one upload attempt.
func (m *Metrics) ObserveUpload(kind, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(kind, outcome).Inc()
	m.UploadDurationSeconds.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordPrecondition counts an upload refused before any request was made.
func (m *Metrics) RecordPrecondition(kind string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(kind, OutcomePrecondition).Inc()
}

// ObserveStatusFetch records one status check.
func (m *Metrics) ObserveStatusFetch(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StatusFetchesTotal.WithLabelValues(outcome).Inc()
	m.StatusFetchDurationSeconds.Observe(durationSeconds)
}

func (m *Metrics) PollerStarted() {
	if m == nil {
		return
	}
	m.ActivePollers.Inc()
}

func (m *Metrics) PollerStopped() {
	if m == nil {
		return
	}
	m.ActivePollers.Dec()
}

// RecordTerminal counts a session reaching COMPLETED or FAILED.
func (m *Metrics) RecordTerminal(status string) {
	if m == nil {
		return
	}
	m.TerminalTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordStaleResult() {
	if m == nil {
		return
	}
	m.StaleResultsTotal.Inc()
}
