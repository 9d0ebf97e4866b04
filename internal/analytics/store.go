package analytics

import (
	"sort"
	"sync"
	"time"

	"dev.consensus.engine/internal/models"
)

// Store holds recorded QueryAnalyticsRecord rows in memory and answers the
// windowed aggregate queries spec.md §4.6 names. The storage layout is
// implementation-local (spec.md §4.6): a simple mutex-protected slice is
// enough here since nothing downstream depends on it directly.
type Store struct {
	mu       sync.RWMutex
	records  []models.QueryAnalyticsRecord
	feedback []models.Feedback
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Append adds one record. Analytics records are weakly ordered by
// timestamp only (spec.md §5), so no ordering is enforced on insert.
func (s *Store) Append(record models.QueryAnalyticsRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

// AppendFeedback adds one user feedback rating to the store. Feedback is
// write-only into analytics (spec.md §9's resolution): nothing in C5 reads
// it back into scoring.
func (s *Store) AppendFeedback(feedback models.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, feedback)
}

// FeedbackCount reports how many feedback ratings have been recorded.
func (s *Store) FeedbackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.feedback)
}

func (s *Store) since(now time.Time, window time.Duration) []models.QueryAnalyticsRecord {
	cutoff := now.Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.QueryAnalyticsRecord, 0, len(s.records))
	for _, r := range s.records {
		if window <= 0 || !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// Summary is the aggregate spec.md §4.6 defines for summary(window).
type Summary struct {
	Count         int     `json:"count"`
	SuccessRate   float64 `json:"success_rate"`
	MedianLatency float64 `json:"median_latency_ms"`
	MedianScore   float64 `json:"median_score"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
}

// Summary answers spec.md §4.6's summary(window) query.
func (s *Store) Summary(window time.Duration) Summary {
	records := s.since(time.Now(), window)
	if len(records) == 0 {
		return Summary{}
	}

	var successes, cacheHits int
	latenciesMs := make([]float64, 0, len(records))
	scores := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Success {
			successes++
		}
		if r.CacheHit {
			cacheHits++
		}
		latenciesMs = append(latenciesMs, float64(r.TotalLatency.Milliseconds()))
		scores = append(scores, r.ConsensusScore)
	}

	return Summary{
		Count:         len(records),
		SuccessRate:   float64(successes) / float64(len(records)),
		MedianLatency: percentile(latenciesMs, 0.5),
		MedianScore:   percentile(scores, 0.5),
		CacheHitRate:  float64(cacheHits) / float64(len(records)),
	}
}

// ModelPerformance is the per-model aggregate spec.md §4.6 defines for
// model_performance(window).
type ModelPerformance struct {
	SuccessRate      float64 `json:"success_rate"`
	P50LatencyMs     float64 `json:"p50_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	MeanAgreement    float64 `json:"mean_agreement"`
	EstimatedCost    float64 `json:"estimated_cost"`
	SampleCount      int     `json:"sample_count"`
}

// ModelPerformance answers spec.md §4.6's model_performance(window) query.
// Per-model success/latency is derived from per_model_latency entries on
// each record: every model_id present in that map is treated as having been
// called, whatever its latency; analytics does not see the underlying
// ProviderReply.success flag directly (only C5 does), so success here is
// approximated from the record's overall Success flag for models that
// participated in that query. mean_agreement and estimated_cost are averaged
// over the record's per_model_agreement/per_model_cost entries, which C5
// only populates for models whose reply succeeded.
func (s *Store) ModelPerformance(window time.Duration) map[string]ModelPerformance {
	records := s.since(time.Now(), window)

	type accumulator struct {
		latenciesMs  []float64
		successes    int
		total        int
		agreementSum float64
		agreementN   int
		costSum      float64
		costN        int
	}
	acc := make(map[string]*accumulator)

	get := func(modelID string) *accumulator {
		a, ok := acc[modelID]
		if !ok {
			a = &accumulator{}
			acc[modelID] = a
		}
		return a
	}

	for _, r := range records {
		for modelID, latency := range r.PerModelLatency {
			a := get(modelID)
			a.latenciesMs = append(a.latenciesMs, float64(latency.Milliseconds()))
			a.total++
			if r.Success {
				a.successes++
			}
		}
		for modelID, agreement := range r.PerModelAgreement {
			a := get(modelID)
			a.agreementSum += agreement
			a.agreementN++
		}
		for modelID, cost := range r.PerModelCost {
			a := get(modelID)
			a.costSum += cost
			a.costN++
		}
	}

	out := make(map[string]ModelPerformance, len(acc))
	for modelID, a := range acc {
		perf := ModelPerformance{SampleCount: a.total}
		if a.total > 0 {
			perf.SuccessRate = float64(a.successes) / float64(a.total)
		}
		perf.P50LatencyMs = percentile(a.latenciesMs, 0.5)
		perf.P95LatencyMs = percentile(a.latenciesMs, 0.95)
		if a.agreementN > 0 {
			perf.MeanAgreement = a.agreementSum / float64(a.agreementN)
		}
		if a.costN > 0 {
			perf.EstimatedCost = a.costSum / float64(a.costN)
		}
		out[modelID] = perf
	}
	return out
}

// TrendPoint is one time bucket of spec.md §4.6's trend(window, bucket) query.
type TrendPoint struct {
	BucketStart     time.Time `json:"bucket_start"`
	MeanScore       float64   `json:"mean_score"`
	P95LatencyMs    float64   `json:"p95_latency_ms"`
	Count           int       `json:"count"`
}

// Trend answers spec.md §4.6's trend(window, bucket) query, bucketing
// records into fixed-width windows aligned to whole multiples of bucket
// since the Unix epoch (not to now), oldest first.
func (s *Store) Trend(window, bucket time.Duration) []TrendPoint {
	if bucket <= 0 {
		bucket = time.Minute
	}
	now := time.Now()
	records := s.since(now, window)

	buckets := make(map[int64][]models.QueryAnalyticsRecord)
	var order []int64
	seen := make(map[int64]bool)
	for _, r := range records {
		idx := r.Timestamp.Unix() / int64(bucket.Seconds())
		buckets[idx] = append(buckets[idx], r)
		if !seen[idx] {
			seen[idx] = true
			order = append(order, idx)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]TrendPoint, 0, len(order))
	for _, idx := range order {
		rows := buckets[idx]
		scores := make([]float64, 0, len(rows))
		latenciesMs := make([]float64, 0, len(rows))
		for _, r := range rows {
			scores = append(scores, r.ConsensusScore)
			latenciesMs = append(latenciesMs, float64(r.TotalLatency.Milliseconds()))
		}
		var meanScore float64
		for _, sc := range scores {
			meanScore += sc
		}
		if len(scores) > 0 {
			meanScore /= float64(len(scores))
		}
		out = append(out, TrendPoint{
			BucketStart:  time.Unix(idx*int64(bucket.Seconds()), 0).UTC(),
			MeanScore:    meanScore,
			P95LatencyMs: percentile(latenciesMs, 0.95),
			Count:        len(rows),
		})
	}
	return out
}

// percentile returns the p-th percentile (0..1) of values using linear
// interpolation between the two nearest ranks. Returns 0 for an empty slice.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
