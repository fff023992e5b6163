package events

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/voltmart/checkout/internal/domain/order"
)

const scopeName = "github.com/voltmart/checkout/internal/events"

// TelemetryPublisher decorates another publisher with a producer span and
// order metrics, so placements show up in traces and dashboards regardless
// of the transport behind it.
type TelemetryPublisher struct {
	next   order.Publisher
	tracer trace.Tracer
	placed metric.Int64Counter
	totals metric.Float64Histogram
}

var _ order.Publisher = (*TelemetryPublisher)(nil)

// Instrument wraps next with tracing and metrics from the given providers.
func Instrument(next order.Publisher, tp trace.TracerProvider, mp metric.MeterProvider) (*TelemetryPublisher, error) {
	meter := mp.Meter(scopeName)

	placed, err := meter.Int64Counter("checkout.orders.placed",
		metric.WithDescription("Orders committed successfully"))
	if err != nil {
		return nil, err
	}
	totals, err := meter.Float64Histogram("checkout.orders.total",
		metric.WithDescription("Grand total of committed orders"))
	if err != nil {
		return nil, err
	}

	return &TelemetryPublisher{
		next:   next,
		tracer: tp.Tracer(scopeName),
		placed: placed,
		totals: totals,
	}, nil
}

// OrderPlaced records the placement and forwards the event.
func (p *TelemetryPublisher) OrderPlaced(ctx context.Context, o *order.Order) {
	ctx, span := p.tracer.Start(ctx, "order.placed",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("order.id", o.ID),
			attribute.Int("order.lines", len(o.Lines)),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.Bool("order.coupon", o.CouponCode != ""))
	p.placed.Add(ctx, 1, attrs)
	p.totals.Record(ctx, o.Total.InexactFloat64(), attrs)

	p.next.OrderPlaced(ctx, o)
}
