// internal/pkg/metrics/metrics.go
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder is the observability collaborator injected into the checkout,
// order and webhook paths. Implementations must be safe for concurrent use.
type Recorder interface {
	OrderCreated(ctx context.Context, paymentMethod string)
	OrderPaid(ctx context.Context, source string)
	OrderCancelled(ctx context.Context)
	CheckoutFailed(ctx context.Context, reason string)
	WebhookEvent(ctx context.Context, eventType string, accepted bool)
}

// otelRecorder implements Recorder on the OpenTelemetry metric API.
type otelRecorder struct {
	ordersCreated    metric.Int64Counter
	ordersPaid       metric.Int64Counter
	ordersCancelled  metric.Int64Counter
	checkoutFailures metric.Int64Counter
	webhookEvents    metric.Int64Counter
}

// NewRecorder creates a Recorder backed by the global meter provider.
func NewRecorder() (Recorder, error) {
	meter := otel.Meter("jewelry-storefront")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Number of orders created at checkout"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	ordersPaid, err := meter.Int64Counter("orders_paid_total",
		metric.WithDescription("Number of orders marked paid"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	ordersCancelled, err := meter.Int64Counter("orders_cancelled_total",
		metric.WithDescription("Number of orders cancelled"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	checkoutFailures, err := meter.Int64Counter("checkout_failures_total",
		metric.WithDescription("Number of failed checkout attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	webhookEvents, err := meter.Int64Counter("webhook_events_total",
		metric.WithDescription("Number of webhook events received"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		ordersCreated:    ordersCreated,
		ordersPaid:       ordersPaid,
		ordersCancelled:  ordersCancelled,
		checkoutFailures: checkoutFailures,
		webhookEvents:    webhookEvents,
	}, nil
}

func (r *otelRecorder) OrderCreated(ctx context.Context, paymentMethod string) {
	r.ordersCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", paymentMethod)))
}

func (r *otelRecorder) OrderPaid(ctx context.Context, source string) {
	r.ordersPaid.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (r *otelRecorder) OrderCancelled(ctx context.Context) {
	r.ordersCancelled.Add(ctx, 1)
}

func (r *otelRecorder) CheckoutFailed(ctx context.Context, reason string) {
	r.checkoutFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *otelRecorder) WebhookEvent(ctx context.Context, eventType string, accepted bool) {
	r.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("accepted", accepted)))
}

// noopRecorder discards every observation.
type noopRecorder struct{}

// NewNoopRecorder returns a Recorder that records nothing. Used as the
// default in tests and when metrics are disabled.
func NewNoopRecorder() Recorder {
	return noopRecorder{}
}

func (noopRecorder) OrderCreated(context.Context, string)       {}
func (noopRecorder) OrderPaid(context.Context, string)          {}
func (noopRecorder) OrderCancelled(context.Context)             {}
func (noopRecorder) CheckoutFailed(context.Context, string)     {}
func (noopRecorder) WebhookEvent(context.Context, string, bool) {}
