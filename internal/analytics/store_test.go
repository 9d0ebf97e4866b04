package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dev.consensus.engine/internal/models"
)

func TestStore_SummaryEmpty(t *testing.T) {
	s := NewStore()
	summary := s.Summary(time.Hour)
	assert.Equal(t, 0, summary.Count)
	assert.Zero(t, summary.SuccessRate)
}

func TestStore_SummaryComputesRatesAndMedians(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.QueryAnalyticsRecord{Timestamp: now, Success: true, CacheHit: true, TotalLatency: 100 * time.Millisecond, ConsensusScore: 0.9})
	s.Append(models.QueryAnalyticsRecord{Timestamp: now, Success: true, CacheHit: false, TotalLatency: 200 * time.Millisecond, ConsensusScore: 0.7})
	s.Append(models.QueryAnalyticsRecord{Timestamp: now, Success: false, CacheHit: false, TotalLatency: 300 * time.Millisecond, ConsensusScore: 0.1})

	summary := s.Summary(time.Hour)
	assert.Equal(t, 3, summary.Count)
	assert.InDelta(t, 2.0/3.0, summary.SuccessRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, summary.CacheHitRate, 1e-9)
	assert.InDelta(t, 200, summary.MedianLatency, 1e-9)
	assert.InDelta(t, 0.7, summary.MedianScore, 1e-9)
}

func TestStore_SummaryExcludesRecordsOutsideWindow(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.QueryAnalyticsRecord{Timestamp: now.Add(-2 * time.Hour), Success: true, TotalLatency: time.Second})
	s.Append(models.QueryAnalyticsRecord{Timestamp: now, Success: true, TotalLatency: time.Second})

	summary := s.Summary(time.Hour)
	assert.Equal(t, 1, summary.Count)
}

func TestStore_ModelPerformanceAggregatesPerModel(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.QueryAnalyticsRecord{
		Timestamp: now,
		Success:   true,
		PerModelLatency: map[string]time.Duration{
			"model-a": 100 * time.Millisecond,
			"model-b": 150 * time.Millisecond,
		},
	})
	s.Append(models.QueryAnalyticsRecord{
		Timestamp: now,
		Success:   false,
		PerModelLatency: map[string]time.Duration{
			"model-a": 200 * time.Millisecond,
		},
	})

	perf := s.ModelPerformance(time.Hour)
	assert.Equal(t, 2, perf["model-a"].SampleCount)
	assert.InDelta(t, 0.5, perf["model-a"].SuccessRate, 1e-9)
	assert.Equal(t, 1, perf["model-b"].SampleCount)
	assert.InDelta(t, 1.0, perf["model-b"].SuccessRate, 1e-9)
}

func TestStore_ModelPerformanceAveragesAgreementAndCost(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.QueryAnalyticsRecord{
		Timestamp:         now,
		Success:           true,
		PerModelLatency:   map[string]time.Duration{"model-a": 100 * time.Millisecond},
		PerModelAgreement: map[string]float64{"model-a": 0.8},
		PerModelCost:      map[string]float64{"model-a": 0.002},
	})
	s.Append(models.QueryAnalyticsRecord{
		Timestamp:         now,
		Success:           true,
		PerModelLatency:   map[string]time.Duration{"model-a": 120 * time.Millisecond},
		PerModelAgreement: map[string]float64{"model-a": 1.0},
		PerModelCost:      map[string]float64{"model-a": 0.004},
	})

	perf := s.ModelPerformance(time.Hour)
	assert.InDelta(t, 0.9, perf["model-a"].MeanAgreement, 1e-9)
	assert.InDelta(t, 0.003, perf["model-a"].EstimatedCost, 1e-9)
}

func TestStore_TrendBucketsByWindow(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Append(models.QueryAnalyticsRecord{Timestamp: now, ConsensusScore: 0.8, TotalLatency: time.Second})
	s.Append(models.QueryAnalyticsRecord{Timestamp: now.Add(-90 * time.Minute), ConsensusScore: 0.6, TotalLatency: time.Second})

	trend := s.Trend(2*time.Hour, time.Hour)
	assert.Len(t, trend, 2)
	for i := 1; i < len(trend); i++ {
		assert.True(t, trend[i-1].BucketStart.Before(trend[i].BucketStart))
	}
}

func TestPercentile_NearestRankInterpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}
	assert.InDelta(t, 10, percentile(values, 0), 1e-9)
	assert.InDelta(t, 40, percentile(values, 1), 1e-9)
	assert.InDelta(t, 25, percentile(values, 0.5), 1e-9)
}

func TestPercentile_EmptyReturnsZero(t *testing.T) {
	assert.Zero(t, percentile(nil, 0.5))
}
