package client

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pcxmarket/storefront/mockapi"
	"github.com/pcxmarket/storefront/observe"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestDo_Telemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	metrics, err := observe.NewMetrics(meter)
	if err != nil {
		t.Fatal(err)
	}
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")
	var logs bytes.Buffer

	api := mockapi.New(mockapi.WithoutFeatured())
	c := newTestClient(t, api, Config{},
		WithMetrics(metrics),
		WithTracer(observe.NewTracer(tracer)),
		WithLogger(observe.NewLoggerWithWriter("debug", &logs)),
	)
	ctx := context.Background()

	categories := Request{Path: "/categories/", Resource: "categories"}
	_, _ = c.Do(ctx, categories)
	_, _ = c.Do(ctx, categories)
	_, _ = c.DoWithFallback(ctx, Request{Path: "/products/featured/"}, func(ctx context.Context) (*Result, error) {
		return c.Do(ctx, Request{Path: "/products/", Resource: "products"})
	})

	if got := counterTotal(t, reader, "storefront.cache.hits"); got != 1 {
		t.Errorf("cache hits = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "storefront.fallback.total"); got != 1 {
		t.Errorf("fallbacks = %d, want 1", got)
	}
	if got := counterTotal(t, reader, "storefront.request.total"); got != 4 {
		t.Errorf("requests = %d, want 4", got)
	}

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	if len(names) != 4 || names[0] != "storefront.fetch GET /categories/" {
		t.Errorf("spans = %v", names)
	}

	var sawMark bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q is not JSON: %v", line, err)
		}
		if entry["msg"] == "registering failed endpoint" && entry["endpoint"] == "/products/featured/" {
			sawMark = true
		}
	}
	if !sawMark {
		t.Errorf("no log line for the failed endpoint:\n%s", logs.String())
	}
}
