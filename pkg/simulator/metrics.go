// ABOUTME: Session telemetry metrics interface and implementation for allocation requests
// ABOUTME: Records request outcomes, granted block sizes, internal waste and fragmentation levels

package simulator

import (
	"context"
	"time"

	"github.com/KevoDB/firstfit/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// SessionMetrics defines the telemetry a Session records.
// All metrics are optional - implementations can safely be no-op.
type SessionMetrics interface {
	telemetry.ComponentMetrics

	// RecordOperation records the outcome and duration of a table operation.
	RecordOperation(ctx context.Context, opType string, duration time.Duration, errorKind string)

	// RecordAllocation records a granted request and the block that served it.
	RecordAllocation(ctx context.Context, requested, capacity int)

	// RecordRelease records a freed block.
	RecordRelease(ctx context.Context, capacity int)

	// RecordFragmentation records the free units and largest free block.
	RecordFragmentation(ctx context.Context, freeUnits, largestFree int)
}

type sessionMetrics struct {
	tel    telemetry.Telemetry
	policy string
}

// NewSessionMetrics creates a SessionMetrics backed by tel.
// If tel is nil, returns a no-op implementation.
func NewSessionMetrics(tel telemetry.Telemetry, policy string) SessionMetrics {
	if tel == nil {
		return &noopSessionMetrics{}
	}
	return &sessionMetrics{tel: tel, policy: policy}
}

// NewNoopSessionMetrics creates a no-op SessionMetrics for testing.
func NewNoopSessionMetrics() SessionMetrics {
	return &noopSessionMetrics{}
}

func (m *sessionMetrics) base() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(telemetry.AttrComponent, telemetry.ComponentSession),
		attribute.String(telemetry.AttrPolicy, m.policy),
	}
}

func (m *sessionMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration, errorKind string) {
	attrs := append(m.base(), attribute.String(telemetry.AttrOperationType, opType))

	m.tel.RecordHistogram(ctx, "firstfit.session.operation.duration", duration.Seconds(), attrs...)

	status := telemetry.StatusSuccess
	if errorKind != "" {
		status = telemetry.StatusError
		attrs = append(attrs, attribute.String(telemetry.AttrErrorType, errorKind))
	}
	attrs = append(attrs, attribute.String(telemetry.AttrStatus, status))
	m.tel.RecordCounter(ctx, "firstfit.session.operations.total", 1, attrs...)
}

func (m *sessionMetrics) RecordAllocation(ctx context.Context, requested, capacity int) {
	attrs := m.base()
	m.tel.RecordHistogram(ctx, "firstfit.session.allocation.requested", float64(requested), attrs...)
	m.tel.RecordHistogram(ctx, "firstfit.session.allocation.granted", float64(capacity), attrs...)
	telemetry.RecordUnits(ctx, m.tel, "firstfit.session.allocation.waste", int64(capacity-requested), attrs...)
}

func (m *sessionMetrics) RecordRelease(ctx context.Context, capacity int) {
	telemetry.RecordUnits(ctx, m.tel, "firstfit.session.release.units", int64(capacity), m.base()...)
}

func (m *sessionMetrics) RecordFragmentation(ctx context.Context, freeUnits, largestFree int) {
	attrs := m.base()
	m.tel.RecordHistogram(ctx, "firstfit.session.fragmentation.free_units", float64(freeUnits), attrs...)
	m.tel.RecordHistogram(ctx, "firstfit.session.fragmentation.largest_free", float64(largestFree), attrs...)
}

func (m *sessionMetrics) Close() error {
	return nil
}

type noopSessionMetrics struct{}

func (n *noopSessionMetrics) RecordOperation(ctx context.Context, opType string, duration time.Duration, errorKind string) {
}

func (n *noopSessionMetrics) RecordAllocation(ctx context.Context, requested, capacity int) {}

func (n *noopSessionMetrics) RecordRelease(ctx context.Context, capacity int) {}

func (n *noopSessionMetrics) RecordFragmentation(ctx context.Context, freeUnits, largestFree int) {}

func (n *noopSessionMetrics) Close() error {
	return nil
}
