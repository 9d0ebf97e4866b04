package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"dev.consensus.engine/internal/models"
)

// handleConsensus binds POST /consensus.
func (s *Server) handleConsensus(c *gin.Context) {
	var body consensusRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, err.Error())
		return
	}

	req, err := body.toDomain(s.defaultModels)
	if err != nil {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, err.Error())
		return
	}

	result, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleConsensusBatch binds POST /consensus/batch. Each entry is run
// independently; a per-entry failure does not abort the batch (spec.md §6:
// "same as above per entry").
func (s *Server) handleConsensusBatch(c *gin.Context) {
	var body batchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, err.Error())
		return
	}
	if len(body.Queries) == 0 {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, "queries must contain at least one entry")
		return
	}
	if len(body.Queries) > maxBatchEntries {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, "queries must contain at most 50 entries")
		return
	}

	type batchEntry struct {
		Result *models.ConsensusResult `json:"result,omitempty"`
		Error  *models.ErrorEnvelope   `json:"error,omitempty"`
	}

	results := make([]batchEntry, len(body.Queries))
	successCount := 0
	for i := range body.Queries {
		req, err := body.Queries[i].toDomain(s.defaultModels)
		if err != nil {
			results[i] = batchEntry{Error: &models.ErrorEnvelope{
				ErrorCode: string(models.ErrorInvalidRequest),
				Message:   err.Error(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}}
			continue
		}

		result, err := s.engine.Run(c.Request.Context(), req)
		if err != nil {
			results[i] = batchEntry{Error: envelopeFor(err)}
			continue
		}
		results[i] = batchEntry{Result: result}
		successCount++
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": gin.H{
			"total":      len(body.Queries),
			"successful": successCount,
			"failed":     len(body.Queries) - successCount,
		},
	})
}

func envelopeFor(err error) *models.ErrorEnvelope {
	now := time.Now().UTC().Format(time.RFC3339)
	if domainErr, ok := err.(*models.DomainError); ok {
		return &models.ErrorEnvelope{ErrorCode: string(domainErr.Kind), Message: domainErr.Error(), Details: domainErr.Details, Timestamp: now}
	}
	return &models.ErrorEnvelope{ErrorCode: string(models.ErrorInternal), Message: err.Error(), Timestamp: now}
}

// modelStatus is the GET /models response shape: the descriptor plus a
// runtime enabled flag, sorted by id for a stable response.
type modelStatus struct {
	*models.ModelDescriptor
	Status string `json:"status"`
}

// handleModels binds GET /models.
func (s *Server) handleModels(c *gin.Context) {
	descriptors := s.directory.Descriptors()
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].ID < descriptors[j].ID })

	out := make([]modelStatus, 0, len(descriptors))
	for _, d := range descriptors {
		status := "enabled"
		if !d.Enabled {
			status = "disabled"
		}
		out = append(out, modelStatus{ModelDescriptor: d, Status: status})
	}
	c.JSON(http.StatusOK, gin.H{"models": out})
}

// handleAnalyticsPerformance binds GET /analytics/performance. The
// query-param contract (timeframe, metric_type) selects which C6 aggregate
// to return; an unrecognised metric_type returns the full set.
func (s *Server) handleAnalyticsPerformance(c *gin.Context) {
	window := parseTimeframe(c.Query("timeframe"))
	metricType := c.Query("metric_type")

	switch metricType {
	case "summary":
		c.JSON(http.StatusOK, s.analyticsSink.Summary(window))
	case "models":
		c.JSON(http.StatusOK, s.analyticsSink.ModelPerformance(window))
	case "trend":
		c.JSON(http.StatusOK, s.analyticsSink.Trend(window, time.Hour))
	default:
		c.JSON(http.StatusOK, gin.H{
			"summary":           s.analyticsSink.Summary(window),
			"model_performance": s.analyticsSink.ModelPerformance(window),
			"trend":             s.analyticsSink.Trend(window, time.Hour),
		})
	}
}

// parseTimeframe maps the timeframe query param to a lookback window: the
// named values 1h, 6h, 24h, 7d and 30d, or any other Go duration string.
// An absent or unparseable value defaults to 24h.
func parseTimeframe(raw string) time.Duration {
	switch raw {
	case "1h":
		return time.Hour
	case "6h":
		return 6 * time.Hour
	case "24h", "":
		return 24 * time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	default:
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		return 24 * time.Hour
	}
}

// handleHealth binds GET /health. No bearer auth is required (spec.md §6).
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	cacheOK := true
	if _, _, err := s.resultCache.GetResult(ctx, "healthcheck"); err != nil {
		cacheOK = false
	}
	cacheStats := s.resultCache.Stats()

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"uptime_seconds":    int(time.Since(s.startedAt).Seconds()),
		"models_available":  len(s.directory.Descriptors()),
		"cache_reachable":   cacheOK,
		"cache_hit_rate":    cacheStats.HitRate,
		"analytics_dropped": s.analyticsSink.Dropped(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

// handleFeedback binds POST /feedback. Feedback is write-only into C6
// (spec.md §9's resolution): it is recorded but never read back into
// scoring.
func (s *Server) handleFeedback(c *gin.Context) {
	var body feedbackRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, err.Error())
		return
	}
	if err := body.validate(); err != nil {
		writeErrorEnvelope(c, models.ErrorInvalidRequest, err.Error())
		return
	}

	s.analyticsSink.RecordFeedback(models.Feedback{
		ConsensusID: body.ConsensusID,
		Rating:      body.Rating,
		Comment:     body.Comment,
		Timestamp:   time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
