package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_DisabledInstallsInertProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider type = %T, want sdk provider", otel.GetTracerProvider())
	}

	// spans must be creatable and end cleanly without an exporter
	_, span := otel.Tracer("contentd").Start(context.Background(), "negotiate")
	span.SetName("GET /*")
	span.End()

	// shutdown is a no-op and reusable
	for i := 0; i < 2; i++ {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown call %d: %v", i+1, err)
		}
	}
}

func TestInit_DisabledStillPropagatesContext(t *testing.T) {
	if _, err := Init(context.Background(), Options{Enabled: false}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	fields := map[string]bool{}
	for _, f := range otel.GetTextMapPropagator().Fields() {
		fields[f] = true
	}
	if !fields["traceparent"] {
		t.Error("traceparent not propagated")
	}
	if !fields["baggage"] {
		t.Error("baggage not propagated")
	}
}

func TestInit_EnabledReturnsPromptly(t *testing.T) {
	// gRPC defers connection establishment, so even an unreachable
	// collector must not block startup past the dial timeout.
	start := time.Now()
	shutdown, err := Init(context.Background(), Options{
		Enabled:   true,
		Endpoint:  "localhost:1",
		Insecure:  true,
		Sample:    1.0,
		Service:   "contentd",
		Component: "server",
		Version:   "v0.0.0-test",
	})
	if elapsed := time.Since(start); elapsed > dialTimeout+10*time.Second {
		t.Fatalf("Init took %v", elapsed)
	}
	if err != nil {
		// dial timed out, which is an acceptable outcome here
		return
	}
	if shutdown == nil {
		t.Fatal("nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Logf("shutdown without a collector: %v", err)
	}
}
