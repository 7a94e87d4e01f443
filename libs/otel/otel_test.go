package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tc := CaptureTraceContext(ctx)
	if tc.Parent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", tc.Parent)
	}

	restored := trace.SpanContextFromContext(tc.Into(context.Background()))
	if restored.TraceID() != traceID || restored.SpanID() != spanID || !restored.IsRemote() {
		t.Fatalf("span context not restored: %+v", restored)
	}
}

func TestEmptyTraceContext(t *testing.T) {
	ctx := context.Background()
	if got := CaptureTraceContext(ctx); got != (TraceContext{}) {
		t.Fatalf("expected empty trace context, got %+v", got)
	}
	if (TraceContext{}).Into(ctx) != ctx {
		t.Fatal("empty trace context should not wrap ctx")
	}
}

func TestParseRatio(t *testing.T) {
	cases := map[string]float64{"0.25": 0.25, "0": 0, "1": 1, "2": 1, "-1": 1, "abc": 1}
	for in, want := range cases {
		if got := parseRatio(in); got != want {
			t.Fatalf("parseRatio(%q) = %v, want %v", in, got, want)
		}
	}
}
