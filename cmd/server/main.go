// Command server is the consensus engine's process entrypoint: it loads
// configuration and model descriptors, builds every provider adapter and
// C1..C7 collaborator, and starts the HTTP server. Adapted from the
// teacher's cmd/superagent/main_multi_provider.go startup/graceful-shutdown
// shape (http.Server + signal.Notify + srv.Shutdown), narrowed to this
// engine's exit-code contract (spec.md §6: 0 normal, 1 configuration error,
// 2 fatal dependency failure during startup).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dev.consensus.engine/internal/analytics"
	"dev.consensus.engine/internal/cache"
	"dev.consensus.engine/internal/config"
	"dev.consensus.engine/internal/consensus"
	"dev.consensus.engine/internal/embedding"
	"dev.consensus.engine/internal/httpapi"
	"dev.consensus.engine/internal/llmprovider"
	"dev.consensus.engine/internal/llmprovider/providers/anthropic"
	"dev.consensus.engine/internal/llmprovider/providers/baidu"
	"dev.consensus.engine/internal/llmprovider/providers/cohere"
	"dev.consensus.engine/internal/llmprovider/providers/google"
	"dev.consensus.engine/internal/llmprovider/providers/mistral"
	"dev.consensus.engine/internal/llmprovider/providers/moonshot"
	"dev.consensus.engine/internal/llmprovider/providers/openai"
	"dev.consensus.engine/internal/llmprovider/providers/zhipu"
	"dev.consensus.engine/internal/models"
	"dev.consensus.engine/internal/observability"
	"dev.consensus.engine/internal/ratelimit"
)

const (
	exitOK               = 0
	exitConfigError      = 1
	exitDependencyFailed = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := logrus.New()

	cfg := config.Load()
	level, err := logrus.ParseLevel(cfg.Monitoring.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("configuration invalid")
		return exitConfigError
	}

	descriptors, err := config.LoadModelDescriptors(cfg.Server.ModelDescriptorPath)
	if err != nil {
		logger.WithError(err).Error("failed to load model descriptors")
		return exitConfigError
	}

	httpClient := newHTTPClient()
	registry := buildRegistry()

	directory, err := buildDirectory(registry, descriptors, httpClient)
	if err != nil {
		logger.WithError(err).Error("failed to build provider directory")
		return exitDependencyFailed
	}

	resultCache, err := buildCache(cfg.Redis, logger)
	if err != nil {
		logger.WithError(err).Warn("cache backend unavailable, degrading to NullCache")
		resultCache = cache.NewNullCache()
	}
	defer resultCache.Close()

	metrics := analytics.NewMetrics()
	sink := analytics.NewSink(analytics.DefaultMaxBacklog, logger, metrics)
	defer sink.Close()

	engineCfg := consensus.Config{
		RequestTimeout:        cfg.LLM.RequestTimeout,
		MinSuccess:            cfg.LLM.MinSuccess,
		LowConsensusThreshold: cfg.LLM.LowConsensusThreshold,
		CacheTTL:              time.Duration(cfg.Redis.CacheTTLSeconds) * time.Second,
		EmbeddingTTL:          24 * time.Hour,
	}
	retryConfig := llmprovider.DefaultRetryConfig()
	retryConfig.MaxRetries = cfg.LLM.MaxRetries
	retryConfig.InitialDelay = cfg.LLM.RetryInitialDelay
	retryConfig.MaxDelay = cfg.LLM.RetryMaxDelay
	retryConfig.Multiplier = cfg.LLM.RetryMultiplier
	retryConfig.JitterFactor = cfg.LLM.RetryJitterFraction

	tracerProvider, shutdownTracing, err := observability.NewTracerProvider(context.Background(), cfg.Monitoring)
	if err != nil {
		logger.WithError(err).Warn("tracing exporter unavailable, continuing without tracing")
		tracerProvider, shutdownTracing = nil, func(context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	engine := consensus.NewEngine(directory, embedding.NewService(), resultCache, sink, engineCfg, retryConfig).
		WithTracer(observability.NewTracer(tracerProvider))

	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	server := httpapi.NewServer(engine, directory, sink, resultCache, limiter, cfg, descriptors.DefaultModels, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("consensus engine listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.WithError(err).Error("server failed to start")
		return exitDependencyFailed
	case <-quit:
		logger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
		return exitDependencyFailed
	}
	return exitOK
}

// newHTTPClient builds the shared, pooled client every provider adapter
// dispatches through, per spec.md §4.1's HTTP discipline section.
func newHTTPClient() *http.Client {
	client := llmprovider.NewSharedHTTPClient()
	client.Timeout = 60 * time.Second
	return client
}

// buildRegistry registers all eight vendor adapters spec.md §4.1 names.
func buildRegistry() *llmprovider.Registry {
	registry := llmprovider.NewRegistry()
	registry.Register(models.ProviderOpenAIChat, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return openai.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderMoonshotChat, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return moonshot.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderZhipuChat, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return zhipu.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderMistralChat, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return mistral.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderAnthropicMessages, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return anthropic.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderGoogleGenerate, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return google.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderCohereGenerate, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return cohere.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	registry.Register(models.ProviderBaiduErnie, func(d *models.ModelDescriptor, credential string, c *http.Client) llmprovider.LLMProvider {
		return baidu.NewProvider(credential, d.EndpointURL, d.ModelName, c)
	})
	return registry
}

// buildDirectory resolves each enabled descriptor's credential from the
// environment and builds its adapter via the registry. A descriptor whose
// adapter fails to construct is skipped (without a log line) rather than
// aborting startup, so one bad vendor config does not take down the whole
// fleet.
func buildDirectory(registry *llmprovider.Registry, descriptors *config.DescriptorSet, client *http.Client) (*consensus.Directory, error) {
	entries := make(map[string]consensus.Entry, len(descriptors.Models))
	cbConfig := llmprovider.DefaultCircuitBreakerConfig()

	for id, desc := range descriptors.Models {
		if !desc.Enabled {
			continue
		}
		credential := os.Getenv(desc.CredentialRef)
		provider, err := registry.Build(desc, credential, client, cbConfig)
		if err != nil {
			continue
		}
		entries[id] = consensus.Entry{Descriptor: desc, Provider: provider}
	}
	if len(entries) == 0 {
		return nil, errNoUsableModels
	}
	return consensus.NewDirectory(entries), nil
}

// buildCache constructs the tiered L1/L2 cache backed by Redis; callers
// degrade to NullCache when the backend cannot be reached at startup,
// matching spec.md §4.3's cache-outage policy.
func buildCache(redisCfg config.RedisConfig, logger *logrus.Logger) (cache.ConsensusCache, error) {
	redisClient := cache.NewRedisClient(redisCfg)
	ctx, cancel := context.WithTimeout(context.Background(), redisCfg.DialTimeout)
	defer cancel()
	if err := redisClient.Ping(ctx); err != nil {
		return nil, err
	}

	tieredCfg := cache.DefaultTieredCacheConfig()
	tieredCfg.L2TTL = time.Duration(redisCfg.CacheTTLSeconds) * time.Second
	tiered := cache.NewTieredCache(redisClient.Raw(), tieredCfg)
	return cache.NewCache(tiered), nil
}

var errNoUsableModels = &startupError{"no enabled model descriptors produced a usable adapter"}

type startupError struct{ message string }

func (e *startupError) Error() string { return e.message }
