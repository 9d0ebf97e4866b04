package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dev.consensus.engine/internal/models"
)

// Metrics holds the Prometheus series C6 exposes, grounded on the teacher's
// internal/background/metrics.go WorkerPoolMetrics shape (promauto-registered
// gauges/counters/histograms under one namespace).
type Metrics struct {
	RecordsTotal   *prometheus.CounterVec
	RecordsDropped prometheus.Counter
	QueueDepth     prometheus.Gauge
	ConsensusScore prometheus.Histogram
	QueryLatency   *prometheus.HistogramVec
}

// NewMetrics creates and registers the analytics metrics against the default
// registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		RecordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consensusengine",
			Subsystem: "analytics",
			Name:      "records_total",
			Help:      "Total number of query analytics records recorded, by outcome.",
		}, []string{"success"}),

		RecordsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "consensusengine",
			Subsystem: "analytics",
			Name:      "records_dropped_total",
			Help:      "Total number of analytics records dropped due to a full backlog.",
		}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "consensusengine",
			Subsystem: "analytics",
			Name:      "queue_depth",
			Help:      "Current number of records waiting to be persisted by the drain goroutine.",
		}),

		ConsensusScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "consensusengine",
			Subsystem: "analytics",
			Name:      "consensus_score",
			Help:      "Distribution of consensus_score across recorded queries.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}),

		QueryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consensusengine",
			Subsystem: "analytics",
			Name:      "query_latency_seconds",
			Help:      "End-to-end query latency in seconds, by method.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"method"}),
	}
}

func (m *Metrics) observe(record models.QueryAnalyticsRecord) {
	if m == nil {
		return
	}
	status := "false"
	if record.Success {
		status = "true"
	}
	m.RecordsTotal.WithLabelValues(status).Inc()
	m.ConsensusScore.Observe(record.ConsensusScore)
	m.QueryLatency.WithLabelValues(string(record.Method)).Observe(record.TotalLatency.Seconds())
}
