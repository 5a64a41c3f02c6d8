package observe

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta identifies one logical API fetch for telemetry purposes.
type RequestMeta struct {
	Method   string // HTTP method, GET when empty
	Endpoint string // Path without query string
	Resource string // Cache resource name (optional)
}

func (m RequestMeta) method() string {
	if m.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(m.Method)
}

// SpanName returns the span name for this request.
// Format: storefront.fetch <METHOD> <endpoint>
func (m RequestMeta) SpanName() string {
	return "storefront.fetch " + m.method() + " " + m.Endpoint
}

func (m RequestMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", m.method()),
		attribute.String("storefront.endpoint", m.Endpoint),
	}
	if m.Resource != "" {
		attrs = append(attrs, attribute.String("storefront.resource", m.Resource))
	}
	return attrs
}

// Outcome describes how a logical fetch was satisfied.
type Outcome struct {
	Source string // network|cache|shared|fallback
	Status int    // HTTP status, 0 when no response was received
}

// Tracer wraps OpenTelemetry tracing with request-scoped spans.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, out Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, out Outcome, err error) {
	if out.Source != "" {
		span.SetAttributes(attribute.String("storefront.source", out.Source))
	}
	if out.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", out.Status))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Outcome, _ error) {
	span.End()
}
