package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/kirinyoku/cinebook"

// BookingMetrics counts committed booking writes.
type BookingMetrics struct {
	created  metric.Int64Counter
	deleted  metric.Int64Counter
	repaired metric.Int64Counter
}

// NewBookingMetrics registers the booking instruments on the global meter
// provider, so it must run after Setup.
func NewBookingMetrics() (*BookingMetrics, error) {
	meter := otel.Meter(meterName)

	created, err := meter.Int64Counter(
		"bookings.created",
		metric.WithDescription("Number of committed booking creations"),
	)
	if err != nil {
		return nil, err
	}

	deleted, err := meter.Int64Counter(
		"bookings.deleted",
		metric.WithDescription("Number of committed booking deletions"),
	)
	if err != nil {
		return nil, err
	}

	repaired, err := meter.Int64Counter(
		"reconcile.repaired",
		metric.WithDescription("Number of index entries repaired by the reconcile sweep"),
	)
	if err != nil {
		return nil, err
	}

	return &BookingMetrics{created: created, deleted: deleted, repaired: repaired}, nil
}

func (m *BookingMetrics) BookingCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
}

func (m *BookingMetrics) BookingDeleted(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.deleted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Repaired records index entries fixed by a reconcile sweep.
func (m *BookingMetrics) Repaired(ctx context.Context, removed, attached int64) {
	if m == nil {
		return
	}
	m.repaired.Add(ctx, removed, metric.WithAttributes(attribute.String("action", "removed")))
	m.repaired.Add(ctx, attached, metric.WithAttributes(attribute.String("action", "attached")))
}
