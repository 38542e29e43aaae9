package tracer

import (
	"context"
	"testing"
)

func TestInitTracerDisabledByDefault(t *testing.T) {
	// Without OTEL_ENABLED=true no exporter is built; the returned
	// shutdown must still be callable and error-free.
	for _, value := range []string{"", "false", "yes", "1"} {
		t.Setenv("OTEL_ENABLED", value)

		shutdown := InitTracer()
		if shutdown == nil {
			t.Fatalf("OTEL_ENABLED=%q: shutdown func should never be nil", value)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("OTEL_ENABLED=%q: no-op shutdown returned error: %v", value, err)
		}
	}
}
