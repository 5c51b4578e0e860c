package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Notification delivery results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Metrics holds the custom metrics instruments for the application.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter         metric.Int64Counter
	RequestDuration        metric.Float64Histogram
	RemindersGauge         metric.Int64ObservableGauge
	NotificationsCounter   metric.Int64Counter
	DeliveryFailureCounter metric.Int64Counter
	activeRemindersFunc    func() int64
}

// InitMeterProvider initializes the OpenTelemetry meter provider.
// It configures an OTLP gRPC exporter and sets up the global meter provider.
func InitMeterProvider(ctx context.Context, serviceName, otlpEndpoint, environment string) (*sdkmetric.MeterProvider, error) {
	// Create OTLP gRPC exporter
	conn, err := grpc.NewClient(otlpEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	// Create meter provider with periodic reader (10 second interval)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}

// NewMetrics creates and registers custom metrics instruments.
// activeRemindersFunc is polled for the active reminders gauge.
func NewMetrics(meter metric.Meter, activeRemindersFunc func() int64) (*Metrics, error) {
	m := &Metrics{
		activeRemindersFunc: activeRemindersFunc,
	}

	var err error

	// Counter for total HTTP requests
	m.RequestCounter, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	// Histogram for request duration
	m.RequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	m.RemindersGauge, err = meter.Int64ObservableGauge(
		"reminders_active",
		metric.WithDescription("Current number of reminders waiting to fire"),
		metric.WithUnit("{reminder}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeRemindersFunc())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders gauge: %w", err)
	}

	m.NotificationsCounter, err = meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("Notifications raised, by delivery result"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifications counter: %w", err)
	}

	m.DeliveryFailureCounter, err = meter.Int64Counter(
		"notification_delivery_failures_total",
		metric.WithDescription("Failed notification deliveries, by channel"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery failure counter: %w", err)
	}

	return m, nil
}

// RecordNotification counts one raised notification with its overall result.
func (m *Metrics) RecordNotification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.NotificationsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordDeliveryFailure counts a failed delivery through one channel.
func (m *Metrics) RecordDeliveryFailure(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.DeliveryFailureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// RecordRequest records the count and latency of one HTTP request.
func (m *Metrics) RecordRequest(ctx context.Context, method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	duration := time.Since(start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, duration, attrs)
}
