// Package notifier turns fired reminders into user-visible alerts and
// fans them out to the configured delivery channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-reminder/internal/model"
	"github.com/hiroki-koketsu/go-reminder/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-reminder/internal/notifier")

// Channel is one place a notification can be delivered to.
// Implementations must be safe for concurrent use.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// Notifier formats and delivers reminder notifications. It is safe for
// concurrent use: every call builds its own notification.
type Notifier struct {
	channel  string
	channels []Channel
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	newID    func() string
	now      func() time.Time
}

// New creates a Notifier posting to the named notification channel.
func New(channel string, logger *slog.Logger, metrics *telemetry.Metrics, channels ...Channel) *Notifier {
	return &Notifier{
		channel:  channel,
		channels: channels,
		logger:   logger,
		metrics:  metrics,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Notify raises a notification for label. Delivery is best effort: failures
// are logged and counted, never returned.
func (n *Notifier) Notify(ctx context.Context, label string) {
	note := model.Notification{
		ID:        n.newID(),
		Channel:   n.channel,
		Title:     model.NotificationTitle(label),
		Label:     label,
		CreatedAt: n.now(),
	}

	ctx, span := tracer.Start(ctx, "Notifier.Notify",
		trace.WithAttributes(
			attribute.String("notification.id", note.ID),
			attribute.String("notification.channel", note.Channel),
		),
	)
	defer span.End()

	if err := n.deliver(ctx, note); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notification delivery failed")
		n.logger.ErrorContext(ctx, "notification delivery failed",
			slog.String("notification_id", note.ID),
			slog.String("label", label),
			slog.Any("error", err),
		)
		n.metrics.RecordNotification(ctx, telemetry.ResultFailed)
		return
	}

	n.logger.DebugContext(ctx, "notification delivered",
		slog.String("notification_id", note.ID),
		slog.Int("channels", len(n.channels)),
	)
	n.metrics.RecordNotification(ctx, telemetry.ResultDelivered)
}

func (n *Notifier) deliver(ctx context.Context, note model.Notification) error {
	var errs []error
	for _, ch := range n.channels {
		if err := deliverSafely(ctx, ch, note); err != nil {
			n.metrics.RecordDeliveryFailure(ctx, ch.Name())
			errs = append(errs, &model.DeliveryError{Channel: ch.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// deliverSafely converts a panicking channel into an error.
func deliverSafely(ctx context.Context, ch Channel, note model.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return ch.Deliver(ctx, note)
}
