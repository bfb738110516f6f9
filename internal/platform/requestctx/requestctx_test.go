package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestLoggerFallsBackToGlobal(t *testing.T) {
	if Logger(context.Background()) == nil {
		t.Fatal("expected non-nil logger")
	}
	custom := zap.NewNop()
	ctx := WithLogger(context.Background(), custom)
	if Logger(ctx) != custom {
		t.Fatal("expected stored logger")
	}
}
