package observe

import (
	"context"
	"time"
)

// ExecuteFunc performs one logical fetch and reports how it was satisfied.
type ExecuteFunc func(ctx context.Context, meta RequestMeta) (Outcome, error)

// Middleware wraps fetches with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: the span is carried on the context passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Logger returns the logger the middleware writes to.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps fn with a span, request metrics and a completion log line.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta RequestMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		out, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, out, err)
		m.metrics.RecordRequest(ctx, meta, out, duration, err)

		log := m.logger.WithRequest(meta)
		fields := []Field{
			{Key: "source", Value: out.Source},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if out.Status != 0 {
			fields = append(fields, Field{Key: "status", Value: out.Status})
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err})
			log.Error(ctx, "request failed", fields...)
		} else {
			log.Debug(ctx, "request completed", fields...)
		}

		return out, err
	}
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
