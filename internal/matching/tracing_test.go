package matching

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestCacheSpansReachInstalledProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	defer provider.Shutdown(context.Background())

	store := seededStore()
	cache := NewCache(store, newStubJudge(map[string]float64{"weld": 90}), DefaultConfig(), zap.NewNop())
	c := candidate(store)

	if _, err := cache.GetOrCreateMatch(context.Background(), c.ID, c, jobByID(t, store, "weld")); err != nil {
		t.Fatalf("match: %v", err)
	}

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	for _, name := range names {
		if name == "matching.GetOrCreateMatch" {
			return
		}
	}
	t.Fatalf("expected a matching.GetOrCreateMatch span, got %v", names)
}
