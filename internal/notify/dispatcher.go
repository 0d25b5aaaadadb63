package notify

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/treat_shop/internal/domain"
	"github.com/Skotchmaster/treat_shop/pkg/events"
	"github.com/Skotchmaster/treat_shop/pkg/logging"
)

type Sender interface {
	Send(ctx context.Context, to, body string) error
}

type Dispatcher struct {
	Sender    Sender
	Recipient string
	Publisher events.Publisher
}

// Dispatch sends one SMS per notification. A send failure is returned so the
// provider redelivers the webhook; nothing is queued locally.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	l := logging.FromContext(ctx).With("svc", "notify.dispatch", "event_id", n.SourceEventID)

	if d.Recipient == "" {
		l.Warn("sms_skipped", "reason", "recipient not configured")
		return nil
	}
	// A recipient without a sender would lose the order silently; fail so the
	// provider redelivers once credentials are in place.
	if d.Sender == nil {
		l.Error("sms_send_failed", "reason", "sms sender not configured")
		return fmt.Errorf("sms sender: %w", domain.ErrNotConfigured)
	}

	if err := d.Sender.Send(ctx, d.Recipient, n.Message()); err != nil {
		l.Error("sms_send_failed", "error", err)
		return fmt.Errorf("%w: send sms: %w", domain.ErrUpstream, err)
	}
	l.Info("sms_sent", "items", len(n.Items), "delivery", n.Delivery)

	if d.Publisher != nil {
		ev := events.NewOrderNotified(n.SourceEventID, n.SourceType, len(n.Items), n.Delivery, n.Currency, n.Amount)
		if err := d.Publisher.PublishEvent(ctx, events.TopicOrders, n.SourceEventID, ev); err != nil {
			l.Error("kafka_publish_failed", "topic", events.TopicOrders, "error", err)
		}
	}
	return nil
}

type WebhookService struct {
	Secret     string
	Normalizer *Normalizer
	Dispatcher *Dispatcher
}

// Handle verifies, normalizes and dispatches one webhook delivery. Ignored
// event kinds are acknowledged without side effects.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, sigHeader string) error {
	if s.Secret == "" {
		return fmt.Errorf("webhook secret: %w", domain.ErrNotConfigured)
	}
	ev, err := ParseEvent(payload, sigHeader, s.Secret)
	if err != nil {
		return err
	}

	l := logging.FromContext(ctx).With("svc", "notify.webhook", "event_id", ev.EventID(), "type", ev.EventType())
	if _, ok := ev.(Ignored); ok {
		l.Info("event_ignored")
		return nil
	}

	n, err := s.Normalizer.Build(ctx, ev)
	if err != nil {
		l.Error("notification_build_failed", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if n == nil {
		return nil
	}
	return s.Dispatcher.Dispatch(ctx, n)
}
