package analytics

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.consensus.engine/internal/models"
)

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testMetrics holds a single shared metrics instance to avoid Prometheus
// re-registration errors across tests in this package.
var (
	testMetrics     *Metrics
	testMetricsOnce sync.Once
)

func getTestMetrics() *Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = NewMetrics()
	})
	return testMetrics
}

func TestNewMetrics(t *testing.T) {
	m := getTestMetrics()
	assert.NotNil(t, m.RecordsTotal)
	assert.NotNil(t, m.RecordsDropped)
	assert.NotNil(t, m.QueueDepth)
	assert.NotNil(t, m.ConsensusScore)
	assert.NotNil(t, m.QueryLatency)
}

func TestSink_RecordAndSummary(t *testing.T) {
	sink := NewSink(10, nil, getTestMetrics())
	defer sink.Close()

	sink.Record(models.QueryAnalyticsRecord{QueryID: "q1", Timestamp: time.Now(), Success: true, ConsensusScore: 0.9, TotalLatency: 50 * time.Millisecond})
	sink.Record(models.QueryAnalyticsRecord{QueryID: "q2", Timestamp: time.Now(), Success: false, ConsensusScore: 0.2, TotalLatency: 75 * time.Millisecond})

	require.Eventually(t, func() bool {
		return sink.Summary(time.Hour).Count == 2
	}, time.Second, 5*time.Millisecond)

	summary := sink.Summary(time.Hour)
	assert.InDelta(t, 0.5, summary.SuccessRate, 1e-9)
}

func TestSink_DropsWhenBacklogFull(t *testing.T) {
	sink := &Sink{
		queue:     make(chan models.QueryAnalyticsRecord),
		store:     NewStore(),
		logger:    newDiscardLogger(),
		drainDone: make(chan struct{}),
	}
	// No drain goroutine running, so the unbuffered queue is always full.
	sink.Record(models.QueryAnalyticsRecord{QueryID: "dropped"})
	assert.Equal(t, int64(1), sink.Dropped())
}

func TestSink_CloseDrainsAndStops(t *testing.T) {
	sink := NewSink(4, nil, nil)
	sink.Record(models.QueryAnalyticsRecord{QueryID: "q1", Timestamp: time.Now(), Success: true})
	sink.Close()
	assert.Equal(t, 1, sink.Summary(0).Count)
}
