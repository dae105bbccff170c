// ABOUTME: Tests for the core telemetry interface and the no-op implementation
// ABOUTME: Verifies no-op recording, span creation and helpers never panic

package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestNoopTelemetry(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()

	tel.RecordHistogram(ctx, "firstfit.test.histogram", 1.5, attribute.String("key", "value"))
	tel.RecordCounter(ctx, "firstfit.test.counter", 10, attribute.String("key", "value"))

	spanCtx, span := tel.StartSpan(ctx, "firstfit.test.span", attribute.String("test", "value"))
	if spanCtx != ctx {
		t.Error("StartSpan should return the original context")
	}
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	if span.IsRecording() {
		t.Error("no-op span should not record")
	}
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestHelpers(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()

	RecordDuration(ctx, tel, "firstfit.test.duration", time.Now().Add(-time.Millisecond),
		attribute.String(AttrOperationType, OpTypeAllocate))
	RecordUnits(ctx, tel, "firstfit.test.units", 500,
		attribute.String(AttrComponent, ComponentSession))
}
