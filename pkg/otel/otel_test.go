package otel

import (
	"context"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.ServiceName != defaultTracerName || cfg.Endpoint != defaultEndpoint {
		t.Fatalf("defaults = %+v", cfg)
	}
	cfg = Config{ServiceName: "worker", Endpoint: "collector:4317"}.withDefaults()
	if cfg.ServiceName != "worker" || cfg.Endpoint != "collector:4317" {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}

func TestNewSampler(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "ParentBased"},
	}
	for _, tc := range cases {
		if got := newSampler(tc.ratio).Description(); !strings.HasPrefix(got, tc.want) {
			t.Errorf("ratio %v: sampler = %q, want prefix %q", tc.ratio, got, tc.want)
		}
	}
}

func TestMQHeadersCarryTraceContext(t *testing.T) {
	shutdown, err := Init(Config{Enabled: false}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer shutdown()

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := map[string]interface{}{}
	InjectMQHeaders(ctx, headers)
	if _, ok := headers["traceparent"]; !ok {
		t.Fatalf("traceparent not injected: %v", headers)
	}

	got := trace.SpanContextFromContext(ExtractMQHeaders(context.Background(), headers))
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id = %s, want %s", got.TraceID(), span.SpanContext().TraceID())
	}
}
