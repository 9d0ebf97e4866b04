// Package analytics implements C6: a non-blocking sink for per-query
// outcomes and the read-side aggregate queries spec.md §4.6 names. Grounded
// on the teacher's internal/benchmark/runner.go executeRun/calculateSummary
// channel-plus-background-goroutine shape, narrowed from its worker-pool
// concurrency to this component's single-writer-per-producer,
// single-consumer queue (spec.md §5's analytics-queue resource policy).
package analytics

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dev.consensus.engine/internal/models"
)

// DefaultMaxBacklog matches spec.md §4.6's documented default.
const DefaultMaxBacklog = 10000

// Sink is C6. It never blocks the caller of Record: the channel send is
// non-blocking, and a full backlog drops the record (and logs it), exactly
// as spec.md §4.6 requires.
type Sink struct {
	queue     chan models.QueryAnalyticsRecord
	store     *Store
	logger    *logrus.Logger
	metrics   *Metrics
	dropped   int64
	mu        sync.Mutex
	drainDone chan struct{}
}

// NewSink constructs a Sink with the given backlog capacity and starts its
// background drain goroutine. Callers must call Close at shutdown to drain
// and stop the consumer cleanly. Pass a nil metrics to skip Prometheus
// registration (used by tests that construct multiple sinks against the
// default registerer).
func NewSink(maxBacklog int, logger *logrus.Logger, metrics *Metrics) *Sink {
	if maxBacklog <= 0 {
		maxBacklog = DefaultMaxBacklog
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Sink{
		queue:     make(chan models.QueryAnalyticsRecord, maxBacklog),
		store:     NewStore(),
		logger:    logger,
		metrics:   metrics,
		drainDone: make(chan struct{}),
	}
	go s.drain()
	return s
}

// Record hands a completed query's outcome to the sink. It never blocks:
// when the backlog is full the record is dropped and logged, per spec.md
// §4.6.
func (s *Sink) Record(record models.QueryAnalyticsRecord) {
	select {
	case s.queue <- record:
		s.metrics.observe(record)
		if s.metrics != nil {
			s.metrics.QueueDepth.Set(float64(len(s.queue)))
		}
	default:
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordsDropped.Inc()
		}
		s.logger.WithFields(logrus.Fields{
			"query_id":      record.QueryID,
			"fingerprint":   record.Fingerprint,
			"dropped_total": dropped,
		}).Warn("analytics backlog full, dropping record")
	}
}

// drain is the sole consumer of the queue, persisting each record into the
// in-memory store (spec.md §5: single writer per producer, single
// background consumer). It exits once the queue is closed and drained.
func (s *Sink) drain() {
	defer close(s.drainDone)
	for record := range s.queue {
		s.store.Append(record)
	}
}

// Close stops accepting new records, drains whatever is already queued,
// and waits for the background consumer to finish.
func (s *Sink) Close() {
	close(s.queue)
	<-s.drainDone
}

// RecordFeedback writes a user rating straight into the store. Feedback
// volume is expected to be low relative to query volume, so unlike Record
// it is not routed through the backlog queue.
func (s *Sink) RecordFeedback(feedback models.Feedback) {
	s.store.AppendFeedback(feedback)
}

// FeedbackCount reports how many feedback ratings have been recorded.
func (s *Sink) FeedbackCount() int {
	return s.store.FeedbackCount()
}

// Dropped reports how many records have been dropped for backlog overflow
// since the sink started, for /health and metrics reporting.
func (s *Sink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Summary implements spec.md §4.6's summary(window) query.
func (s *Sink) Summary(window time.Duration) Summary {
	return s.store.Summary(window)
}

// ModelPerformance implements spec.md §4.6's model_performance(window) query.
func (s *Sink) ModelPerformance(window time.Duration) map[string]ModelPerformance {
	return s.store.ModelPerformance(window)
}

// Trend implements spec.md §4.6's trend(window, bucket) query.
func (s *Sink) Trend(window, bucket time.Duration) []TrendPoint {
	return s.store.Trend(window, bucket)
}
