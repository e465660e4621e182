package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpload(KindDocument, OutcomeSuccess, 0.2)
	m.ObserveUpload(KindDocument, OutcomeRejected, 0.1)
	m.RecordPrecondition(KindFace)
	m.ObserveStatusFetch(OutcomeSuccess, 0.01)
	m.ObserveStatusFetch(OutcomeTransport, 0.5)
	m.PollerStarted()
	m.PollerStarted()
	m.PollerStopped()
	m.RecordTerminal("COMPLETED")
	m.RecordStaleResult()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(KindDocument, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(KindDocument, OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues(KindFace, OutcomePrecondition)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusFetchesTotal.WithLabelValues(OutcomeTransport)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivePollers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TerminalTotal.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResultsTotal))
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload(KindFace, OutcomeSuccess, 1)
		m.ObserveStatusFetch(OutcomeError, 1)
		m.PollerStarted()
		m.PollerStopped()
		m.RecordTerminal("FAILED")
		m.RecordStaleResult()
		m.RecordPrecondition(KindDocument)
	})
}
