package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Turn("streamed")
	m.Turn("streamed")
	m.Escalation("low_confidence", "recorded")
	m.Publish("failed")
	m.ClassifierCall(time.Now(), true)
	m.QueueDepth(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("streamed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalations.WithLabelValues("low_confidence", "recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishResults.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifierDegraded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.publishQueueDepth))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Turn("x")
		m.Escalation("a", "b")
		m.Publish("ok")
		m.GenerationTruncated()
	})
}
