package observability

import (
	"context"
	"testing"
	"time"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "styx", "")
	if err != nil {
		t.Fatalf("InitTracing with empty endpoint failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected shutdown function to be non-nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned error: %v", err)
	}
}

func TestInitTracingUnreachableEndpoint(t *testing.T) {
	// gRPC connects lazily, so init succeeds even when the collector is
	// not reachable.
	ctx := context.Background()

	shutdown, err := InitTracing(ctx, "styx", "localhost:4317")
	if err != nil {
		t.Logf("InitTracing returned error (may be expected in this environment): %v", err)
		return
	}
	if shutdown == nil {
		t.Error("expected shutdown function to be non-nil")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	_ = shutdown(shutdownCtx)
}
