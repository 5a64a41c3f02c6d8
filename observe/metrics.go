package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records request metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordRequest(ctx context.Context, meta RequestMeta, out Outcome, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	cacheHits    metric.Int64Counter
	sharedCount  metric.Int64Counter
	fallbacks    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the storefront instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("noop")
	}
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter("storefront.request.total",
		metric.WithDescription("Logical API fetches by source"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.errorCount, err = meter.Int64Counter("storefront.request.errors",
		metric.WithDescription("Logical API fetches that ended in an error"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.cacheHits, err = meter.Int64Counter("storefront.cache.hits",
		metric.WithDescription("Fetches answered from the response cache"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.sharedCount, err = meter.Int64Counter("storefront.request.shared",
		metric.WithDescription("Fetches that joined an identical in-flight request"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.fallbacks, err = meter.Int64Counter("storefront.fallback.total",
		metric.WithDescription("Fetches answered by a fallback"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if m.durationHist, err = meter.Float64Histogram("storefront.request.duration_ms",
		metric.WithDescription("Logical fetch duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta, out Outcome, duration time.Duration, err error) {
	attrs := meta.attributes()
	if out.Source != "" {
		attrs = append(attrs, attribute.String("storefront.source", out.Source))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	switch out.Source {
	case "cache":
		m.cacheHits.Add(ctx, 1, opt)
	case "shared":
		m.sharedCount.Add(ctx, 1, opt)
	case "fallback":
		m.fallbacks.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) RecordRequest(context.Context, RequestMeta, Outcome, time.Duration, error) {}
