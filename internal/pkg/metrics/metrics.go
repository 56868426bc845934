package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the turn-path collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns               *prometheus.CounterVec
	turnDuration        prometheus.Histogram
	escalations         *prometheus.CounterVec
	classifierDegraded  prometheus.Counter
	classifierLatency   prometheus.Histogram
	publishResults      *prometheus.CounterVec
	publishQueueDepth   prometheus.Gauge
	generationTruncated prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "turns_total",
			Help:      "Chat turns by terminal outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "support",
			Name:      "turn_decision_seconds",
			Help:      "Time from message arrival to the first response increment.",
			Buckets:   prometheus.DefBuckets,
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "escalations_total",
			Help:      "Escalation attempts by reason and result (recorded, cooldown, failed).",
		}, []string{"reason", "result"}),
		classifierDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "classifier_degraded_total",
			Help:      "Classifier calls that failed and were treated as low confidence.",
		}),
		classifierLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "support",
			Name:      "classifier_seconds",
			Help:      "Classifier call latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		publishResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "ticket_publish_total",
			Help:      "Ticket publish outcomes (ok, failed, dropped).",
		}, []string{"result"}),
		publishQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "support",
			Name:      "ticket_publish_queue_depth",
			Help:      "Tickets waiting for a publish worker.",
		}),
		generationTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "support",
			Name:      "generation_truncated_total",
			Help:      "Streamed answers cut short by an upstream failure.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.turns, m.turnDuration, m.escalations, m.classifierDegraded, m.classifierLatency,
			m.publishResults, m.publishQueueDepth, m.generationTruncated,
		)
	}
	return m
}

func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TurnDecided(start time.Time) {
	if m == nil {
		return
	}
	m.turnDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Escalation(reason, result string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason, result).Inc()
}

func (m *Metrics) ClassifierCall(start time.Time, degraded bool) {
	if m == nil {
		return
	}
	m.classifierLatency.Observe(time.Since(start).Seconds())
	if degraded {
		m.classifierDegraded.Inc()
	}
}

func (m *Metrics) Publish(result string) {
	if m == nil {
		return
	}
	m.publishResults.WithLabelValues(result).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.publishQueueDepth.Set(float64(n))
}

func (m *Metrics) GenerationTruncated() {
	if m == nil {
		return
	}
	m.generationTruncated.Inc()
}
