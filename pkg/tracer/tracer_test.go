package tracer

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"go.opentelemetry.io/otel"
)

func TestInit_DisabledDropsSpans(t *testing.T) {
	tp, err := Init(config.TracingConfig{Enabled: false}, config.AppConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span.SpanContext().IsSampled() {
		t.Error("expected spans to be dropped when tracing is disabled")
	}
}

func TestInit_EnabledSamplesEverythingAtFullRate(t *testing.T) {
	tp, err := Init(config.TracingConfig{
		Enabled:      true,
		ServiceName:  "clinicflow-test",
		OTLPEndpoint: "127.0.0.1:4318",
		SampleRate:   1,
	}, config.AppConfig{Version: "test", Environment: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("expected the span to be sampled")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("rate %v: expected %s, got %s", tt.rate, tt.want, got)
		}
	}
}
