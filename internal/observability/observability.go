// Package observability wires the optional OpenTelemetry tracing surface
// spec.md's domain-stack expansion calls for: request spans around C1's
// fan-out and C5's scoring, gated on config.MonitoringConfig.TracingEnabled
// so a deployment with no collector configured pays nothing beyond a no-op
// tracer.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"dev.consensus.engine/internal/config"
)

// Attribute keys, namespaced the way the teacher's own tracing attributes
// are (gen_ai.* for provider-facing fields, a product prefix for the
// engine's own domain concepts).
const (
	AttrConsensusFingerprint = attribute.Key("consensus.fingerprint")
	AttrConsensusMethod      = attribute.Key("consensus.method")
	AttrConsensusModelCount  = attribute.Key("consensus.model_count")
	AttrConsensusScore       = attribute.Key("consensus.score")
	AttrConsensusCacheHit    = attribute.Key("consensus.cache_hit")
	AttrLLMProvider          = attribute.Key("gen_ai.request.model")
	AttrLLMModelID           = attribute.Key("gen_ai.request.model_id")
	AttrLLMSuccess           = attribute.Key("gen_ai.response.success")
	AttrLLMErrorKind         = attribute.Key("gen_ai.response.error_kind")
)

// Tracer wraps an otel.Tracer with the handful of span shapes C5 needs. A
// nil *Tracer is valid and every method degrades to returning the input
// context and a no-op span, so callers never need a TracingEnabled check
// of their own.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer from the process-wide TracerProvider. Passing
// nil uses the global provider (a no-op until NewTracerProvider installs a
// real one), matching the teacher's NewLLMTracer(nil)-is-valid convention.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer("dev.consensus.engine/consensus")}
}

// NewTracerProvider installs an OTLP/HTTP exporter against
// MonitoringConfig.JaegerEndpoint when tracing is enabled and returns a
// shutdown func; when disabled it returns a no-op shutdown and leaves the
// global no-op TracerProvider in place.
func NewTracerProvider(ctx context.Context, cfg config.MonitoringConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		return otel.GetTracerProvider(), func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if cfg.JaegerEndpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.JaegerEndpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: building OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

// StartFanOut opens the parent span for one C5 fan-out round (spec.md
// §4.5 step 3): one span per ConsensusRequest, children per provider call.
func (t *Tracer) StartFanOut(ctx context.Context, fingerprint string, method string, modelCount int) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "consensus.fan_out",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrConsensusFingerprint.String(fingerprint),
			AttrConsensusMethod.String(method),
			AttrConsensusModelCount.Int(modelCount),
		))
}

// StartProviderCall opens a child span for one adapter invocation inside
// the fan-out, closed by EndProviderCall with the reply's outcome.
func (t *Tracer) StartProviderCall(ctx context.Context, modelID string, attempt int) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "consensus.provider_call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrLLMModelID.String(modelID),
			attribute.Int("consensus.attempt", attempt),
		))
}

// EndProviderCall records the adapter's success/failure outcome on the span
// and ends it.
func EndProviderCall(span trace.Span, success bool, errorKind string, latency time.Duration) {
	span.SetAttributes(
		AttrLLMSuccess.Bool(success),
		attribute.Int64("consensus.latency_ms", latency.Milliseconds()),
	)
	if !success {
		span.SetAttributes(AttrLLMErrorKind.String(errorKind))
		span.SetStatus(codes.Error, errorKind)
	}
	span.End()
}

// StartScoring opens the span around C5 step 6-8's embed/weight/select
// pipeline, including any chain-refinement rounds it triggers.
func (t *Tracer) StartScoring(ctx context.Context, fingerprint string, successCount int) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "consensus.score",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrConsensusFingerprint.String(fingerprint),
			attribute.Int("consensus.success_count", successCount),
		))
}

// EndScoring records the final agreement score and ends the span.
func EndScoring(span trace.Span, score float64, cacheHit bool) {
	span.SetAttributes(
		AttrConsensusScore.Float64(score),
		AttrConsensusCacheHit.Bool(cacheHit),
	)
	span.End()
}

// StartChainRound opens a span for one critique-and-revise round (spec.md
// §4.5 step 8).
func (t *Tracer) StartChainRound(ctx context.Context, round int, criticID, reviserID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "consensus.chain_round",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("consensus.round", round),
			attribute.String("consensus.critic_id", criticID),
			attribute.String("consensus.reviser_id", reviserID),
		))
}
