package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the mock verification backend.
type Metrics struct {
	SessionsCreated  prometheus.Counter
	SessionsDeleted  prometheus.Counter
	SessionsStored   prometheus.Gauge
	UploadsReceived  *prometheus.CounterVec
	UploadsRejected  *prometheus.CounterVec
	StatusRequests   prometheus.Counter
	EndpointLatency  *prometheus.HistogramVec
	PipelineOutcomes *prometheus.CounterVec
}

// New creates and registers all backend metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "kycmock_sessions_created_total",
			Help: "Total number of verification sessions created",
		}),
		SessionsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "kycmock_sessions_deleted_total",
			Help: "Total number of verification sessions deleted by an admin",
		}),
		SessionsStored: f.NewGauge(prometheus.GaugeOpts{
			Name: "kycmock_sessions_stored",
			Help: "Current number of sessions held in memory",
		}),
		UploadsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycmock_uploads_received_total",
			Help: "Total number of accepted uploads, labeled by kind",
		}, []string{"kind"}),
		UploadsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycmock_uploads_rejected_total",
			Help: "Total number of rejected uploads, labeled by kind",
		}, []string{"kind"}),
		StatusRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "kycmock_status_requests_total",
			Help: "Total number of status requests",
		}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycmock_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		PipelineOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycmock_pipeline_outcomes_total",
			Help: "Total number of sessions first observed terminal, labeled by status",
		}, []string{"status"}),
	}
}

// The methods below are no-ops on a nil receiver so handlers can run without metrics.

func (m *Metrics) IncrementSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsStored.Inc()
}

func (m *Metrics) IncrementSessionsDeleted() {
	if m == nil {
		return
	}
	m.SessionsDeleted.Inc()
	m.SessionsStored.Dec()
}

func (m *Metrics) IncrementUploads(kind string) {
	if m == nil {
		return
	}
	m.UploadsReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementRejectedUploads(kind string) {
	if m == nil {
		return
	}
	m.UploadsRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementStatusRequests() {
	if m == nil {
		return
	}
	m.StatusRequests.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) IncrementPipelineOutcome(status string) {
	if m == nil {
		return
	}
	m.PipelineOutcomes.WithLabelValues(status).Inc()
}
