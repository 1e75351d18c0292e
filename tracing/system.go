package tracing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// SpanStatus is the terminal status of a traced hop.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Statistics describes the current state of a tracing system.
type Statistics struct {
	ActiveSpans   int
	FinishedSpans uint64
	SampleRate    float64
}

// System is the tracing collaborator consumed by the observability manager.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: every method is best-effort; unknown contexts are ignored and
//   no method panics, since tracing must never crash the traced operation.
type System interface {
	// StartTrace opens a span for the root hop described by tc.
	StartTrace(tc *TraceContext)

	// StartChildTrace opens a span for a child hop, linking it to the
	// parent identified by tc.ParentSpanID when that span is still active.
	StartChildTrace(tc *TraceContext)

	// SetTraceStatus records the terminal status for the hop.
	SetTraceStatus(tc *TraceContext, status SpanStatus, message string)

	// FinishTrace ends the span for the hop. Finishing an unknown or
	// already-finished hop is a no-op.
	FinishTrace(tc *TraceContext)

	// SetSampleRate adjusts the probability of sampling new root traces.
	SetSampleRate(rate float64)

	// SampleRate returns the current sampling probability.
	SampleRate() float64

	// Statistics returns a snapshot of the system's counters.
	Statistics() Statistics
}

// SystemConfig configures an OpenTelemetry-backed tracing system.
type SystemConfig struct {
	ServiceName string
	Version     string
	Exporter    string  // otlp|stdout|none
	SampleRate  float64 // 0.0-1.0
}

// OTelSystem implements System on top of an OpenTelemetry tracer provider.
// The sampler is dynamic so the overhead control loop can lower the rate on
// a running system.
type OTelSystem struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	sampler  *ratioSampler

	mu       sync.Mutex
	active   map[string]activeSpan
	finished atomic.Uint64
}

type activeSpan struct {
	ctx  context.Context
	span trace.Span
}

// NewOTelSystem builds an OTelSystem with the named exporter.
func NewOTelSystem(ctx context.Context, cfg SystemConfig) (*OTelSystem, error) {
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return nil, fmt.Errorf("%w: %f", ErrInvalidSampleRate, cfg.SampleRate)
	}

	exporter, err := NewSpanExporter(ctx, cfg.Exporter)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := newRatioSampler(cfg.SampleRate)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	return NewOTelSystemWithProvider(tp, cfg.ServiceName, sampler), nil
}

// NewOTelSystemWithProvider wraps an existing provider. Tests use this with
// a span-recorder provider; pass a nil sampler to run at rate 1.0.
func NewOTelSystemWithProvider(tp *sdktrace.TracerProvider, serviceName string, sampler *ratioSampler) *OTelSystem {
	if sampler == nil {
		sampler = newRatioSampler(1.0)
	}
	return &OTelSystem{
		provider: tp,
		tracer:   tp.Tracer(serviceName),
		sampler:  sampler,
		active:   make(map[string]activeSpan),
	}
}

func (s *OTelSystem) StartTrace(tc *TraceContext) {
	s.start(context.Background(), tc)
}

func (s *OTelSystem) StartChildTrace(tc *TraceContext) {
	parentCtx := context.Background()
	if tc.ParentSpanID != "" {
		s.mu.Lock()
		if parent, ok := s.active[spanKey(tc.TraceID, tc.ParentSpanID)]; ok {
			parentCtx = parent.ctx
		}
		s.mu.Unlock()
	}
	s.start(parentCtx, tc)
}

func (s *OTelSystem) start(parentCtx context.Context, tc *TraceContext) {
	if tc == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("trace.id", tc.TraceID),
		attribute.String("span.id", tc.SpanID),
		attribute.Bool("trace.sampled", tc.Sampled),
	}
	if tc.ParentSpanID != "" {
		attrs = append(attrs, attribute.String("span.parent_id", tc.ParentSpanID))
	}
	for k, v := range tc.Baggage {
		attrs = append(attrs, attribute.String("baggage."+k, v))
	}

	ctx, span := s.tracer.Start(parentCtx, tc.Operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	s.mu.Lock()
	s.active[spanKey(tc.TraceID, tc.SpanID)] = activeSpan{ctx: ctx, span: span}
	s.mu.Unlock()
}

func (s *OTelSystem) SetTraceStatus(tc *TraceContext, status SpanStatus, message string) {
	if tc == nil {
		return
	}
	s.mu.Lock()
	entry, ok := s.active[spanKey(tc.TraceID, tc.SpanID)]
	s.mu.Unlock()
	if !ok {
		return
	}

	if status == SpanStatusError {
		entry.span.SetStatus(codes.Error, message)
		entry.span.SetAttributes(attribute.Bool("trace.error", true))
	} else {
		entry.span.SetStatus(codes.Ok, "")
	}
}

func (s *OTelSystem) FinishTrace(tc *TraceContext) {
	if tc == nil {
		return
	}
	key := spanKey(tc.TraceID, tc.SpanID)

	s.mu.Lock()
	entry, ok := s.active[key]
	if ok {
		delete(s.active, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	for k, v := range tc.Metadata {
		if str, ok := v.(string); ok {
			entry.span.SetAttributes(attribute.String("meta."+k, str))
		}
	}
	entry.span.End()
	s.finished.Add(1)
}

func (s *OTelSystem) SetSampleRate(rate float64) {
	s.sampler.set(rate)
}

func (s *OTelSystem) SampleRate() float64 {
	return s.sampler.get()
}

func (s *OTelSystem) Statistics() Statistics {
	s.mu.Lock()
	active := len(s.active)
	s.mu.Unlock()

	return Statistics{
		ActiveSpans:   active,
		FinishedSpans: s.finished.Load(),
		SampleRate:    s.sampler.get(),
	}
}

// Shutdown flushes and stops the underlying provider.
func (s *OTelSystem) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

func spanKey(traceID, spanID string) string {
	return traceID + ":" + spanID
}

// ratioSampler is a trace-id-ratio sampler whose rate can change while the
// provider is running.
type ratioSampler struct {
	rate  atomic.Uint64 // math.Float64bits
	inner atomic.Value  // samplerBox
}

// samplerBox gives atomic.Value a single concrete type to store;
// TraceIDRatioBased returns different concrete types depending on the rate.
type samplerBox struct {
	sampler sdktrace.Sampler
}

func newRatioSampler(rate float64) *ratioSampler {
	s := &ratioSampler{}
	s.set(rate)
	return s
}

func (s *ratioSampler) set(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	s.rate.Store(math.Float64bits(rate))
	s.inner.Store(samplerBox{sampler: sdktrace.TraceIDRatioBased(rate)})
}

func (s *ratioSampler) get() float64 {
	return math.Float64frombits(s.rate.Load())
}

func (s *ratioSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	return s.inner.Load().(samplerBox).sampler.ShouldSample(p)
}

func (s *ratioSampler) Description() string {
	return "DynamicTraceIDRatio"
}

var _ System = (*OTelSystem)(nil)
var _ sdktrace.Sampler = (*ratioSampler)(nil)
