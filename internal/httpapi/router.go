// Package httpapi implements C7: the gin router binding spec.md §6's
// endpoints to C4 (auth/rate-limit) and C5 (the consensus engine), and
// translating error_kind to HTTP status. Adapted from the teacher's
// cmd/api/main.go APIServer shape (a struct holding its collaborators,
// route groups registered in a constructor, CORS applied as global
// middleware) and internal/adapters/auth/integration.go's bearer-token
// gate, now backed by internal/ratelimit instead of an OAuth manager.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"dev.consensus.engine/internal/analytics"
	"dev.consensus.engine/internal/cache"
	"dev.consensus.engine/internal/concurrency"
	"dev.consensus.engine/internal/config"
	"dev.consensus.engine/internal/consensus"
	"dev.consensus.engine/internal/models"
	"dev.consensus.engine/internal/ratelimit"
)

// Request bodies reject unknown fields (spec.md §6): gin's JSON decoder is
// switched into strict mode once, process-wide, rather than per-handler.
func init() {
	gin.EnableJsonDecoderDisallowUnknownFields()
}

// Server holds every C7 collaborator. It never reaches into provider
// vocabulary directly (spec.md §4.7): all domain work is delegated to the
// Engine.
type Server struct {
	engine        *consensus.Engine
	directory     *consensus.Directory
	analyticsSink *analytics.Sink
	resultCache   cache.ConsensusCache
	limiter       *ratelimit.Limiter
	inflight      *concurrency.Semaphore
	cfg           *config.Config
	logger        *logrus.Logger
	defaultModels []string
	startedAt     time.Time
}

// NewServer constructs the C7 server from already-wired collaborators.
func NewServer(
	engine *consensus.Engine,
	directory *consensus.Directory,
	analyticsSink *analytics.Sink,
	resultCache cache.ConsensusCache,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
	defaultModels []string,
	logger *logrus.Logger,
) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxInflight := cfg.Server.MaxInflightRequests
	if maxInflight <= 0 {
		maxInflight = 256
	}
	return &Server{
		engine:        engine,
		directory:     directory,
		analyticsSink: analyticsSink,
		resultCache:   resultCache,
		limiter:       limiter,
		inflight:      concurrency.NewSemaphore(maxInflight),
		cfg:           cfg,
		logger:        logger,
		defaultModels: defaultModels,
		startedAt:     time.Now(),
	}
}

// Router builds the gin.Engine binding every spec.md §6 endpoint, wrapped in
// the CORS and auth/rate-limit middleware chain.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	if s.cfg.Server.RequestLogging {
		r.Use(requestLogger(s.logger))
	}
	r.Use(corsMiddleware(s.cfg.Security.CORSAllowedOrigins))
	r.Use(inflightLimitMiddleware(s.inflight))

	r.GET("/health", s.handleHealth)
	r.GET("/docs", gin.WrapF(s.handleDocs))
	r.GET("/openapi.json", gin.WrapF(s.handleOpenAPISpec))

	authed := r.Group("/")
	authed.Use(ratelimit.AuthGate(s.cfg.Server.BackendAPIKeys, s.cfg.Server.JWTSecret))
	{
		authed.POST("/consensus", ratelimit.RateLimit(s.limiter, config.RouteClassConsensus), s.handleConsensus)
		authed.POST("/consensus/batch", ratelimit.RateLimit(s.limiter, config.RouteClassBatch), s.handleConsensusBatch)
		authed.GET("/models", ratelimit.RateLimit(s.limiter, config.RouteClassReadOnly), s.handleModels)
		authed.GET("/analytics/performance", ratelimit.RateLimit(s.limiter, config.RouteClassReadOnly), s.handleAnalyticsPerformance)
		authed.POST("/feedback", ratelimit.RateLimit(s.limiter, config.RouteClassReadOnly), s.handleFeedback)
	}

	if s.cfg.Monitoring.Prometheus.Enabled {
		r.GET(s.cfg.Monitoring.Prometheus.Path, gin.WrapH(prometheusHandler()))
	}

	return r
}

func prometheusHandler() http.Handler {
	return promhttp.Handler()
}

// requestLogger mirrors the teacher's logrus-based request logging
// convention (structured fields, not gin's default text format).
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		}).Info("request handled")
	}
}

// corsMiddleware enforces spec.md §6's no-wildcard-default CORS allow-list.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// inflightLimitMiddleware enforces spec.md §5's process-wide in-flight
// request budget (MAX_INFLIGHT_REQUESTS, default 256): a request that finds
// no free slot is rejected immediately rather than queued, so load beyond
// capacity fails fast instead of piling up behind the ones already running.
// This is the overloaded case (spec.md §7), distinct from the per-token
// rate_limited case RateLimit answers.
func inflightLimitMiddleware(sem *concurrency.Semaphore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sem.TryAcquire() {
			c.Header("Retry-After", "1")
			writeErrorEnvelope(c, models.ErrorOverloaded, "server at capacity, try again shortly")
			return
		}
		defer sem.Release()
		c.Next()
	}
}

// writeErrorEnvelope translates a models.ErrorKind into spec.md §6's uniform
// error envelope.
func writeErrorEnvelope(c *gin.Context, kind models.ErrorKind, message string) {
	c.AbortWithStatusJSON(models.HTTPStatus(kind), models.ErrorEnvelope{
		ErrorCode: string(kind),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeDomainError unwraps a *models.DomainError returned by the engine and
// writes the matching envelope; any other error is treated as internal.
func writeDomainError(c *gin.Context, err error) {
	if domainErr, ok := err.(*models.DomainError); ok {
		c.AbortWithStatusJSON(models.HTTPStatus(domainErr.Kind), models.ErrorEnvelope{
			ErrorCode: string(domainErr.Kind),
			Message:   domainErr.Error(),
			Details:   domainErr.Details,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	writeErrorEnvelope(c, models.ErrorInternal, err.Error())
}
