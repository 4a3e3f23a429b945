package observability

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultTracingConfig(t *testing.T) {
	cfg := DefaultTracingConfig()

	if cfg.ServiceName != "askpdf" {
		t.Errorf("expected service name 'askpdf', got %s", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %v", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("tracing should be disabled by default, got endpoint %s", cfg.OTLPEndpoint)
	}
}

func TestInitTracing_DisabledWithoutEndpoint(t *testing.T) {
	tp, err := InitTracing(context.Background(), &TracingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected tracer provider")
	}
	if tp.Tracer() == nil {
		t.Error("expected a usable tracer")
	}

	// Shutdown of a no-op provider must not fail
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestInitTracing_NilConfig(t *testing.T) {
	tp, err := InitTracing(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tp == nil {
		t.Fatal("expected tracer provider with default config")
	}
}

func TestSpanHelpers_NoOpProvider(t *testing.T) {
	ctx := context.Background()

	ctx, span := StartUploadSpan(ctx, "doc.pdf", 1024)
	RecordUploadResult(span, 4)
	span.End()

	_, span = StartExtractSpan(ctx, "doc.pdf")
	span.End()

	_, span = StartEmbedSpan(ctx, 4)
	span.End()

	_, span = StartRetrievalSpan(ctx, 3)
	RecordRetrievalResult(span, 3)
	span.End()

	_, span = StartLLMSpan(ctx, "ollama")
	RecordLLMMetrics(span, 100, 50, 0)
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
	span.End()
}
