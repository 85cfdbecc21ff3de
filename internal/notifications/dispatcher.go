package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/services"
)

// Broadcaster fans an envelope out to connected websocket clients.
type Broadcaster interface {
	Broadcast(env Envelope) (int, error)
}

// EventBus forwards envelopes to downstream consumers.
type EventBus interface {
	PublishEvent(ctx context.Context, env Envelope) error
}

// MailQueue hands rendered mail to the mail worker.
type MailQueue interface {
	PublishMail(ctx context.Context, job MailJob) (string, error)
}

// DispatcherDeps wires the delivery channels. Any channel may be nil.
type DispatcherDeps struct {
	Hub      Broadcaster
	Bus      EventBus
	Mail     MailQueue
	Renderer *MailRenderer
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Dispatcher routes order core events to the websocket hub, the event bus and the mail queue.
type Dispatcher struct {
	hub      Broadcaster
	bus      EventBus
	mail     MailQueue
	renderer *MailRenderer
	now      func() time.Time
	logger   *zap.Logger
}

var (
	_ services.EventPublisher = (*Dispatcher)(nil)
	_ services.OrderMailer    = (*Dispatcher)(nil)
)

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(deps DispatcherDeps) (*Dispatcher, error) {
	if deps.Mail != nil && deps.Renderer == nil {
		return nil, errors.New("notifications: mail renderer is required when a mail queue is configured")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		hub:      deps.Hub,
		bus:      deps.Bus,
		mail:     deps.Mail,
		renderer: deps.Renderer,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger.Named("notifications"),
	}, nil
}

// Publish broadcasts event to websocket clients and forwards it to the event bus.
func (d *Dispatcher) Publish(ctx context.Context, event services.Event) error {
	if !IsKnownEvent(strings.TrimSpace(event.Name)) {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event.Name)
	}
	env := NewEnvelope(event, d.now())

	var errs []error
	if d.hub != nil {
		delivered, err := d.hub.Broadcast(env)
		if err != nil {
			errs = append(errs, fmt.Errorf("broadcast: %w", err))
		} else {
			d.logger.Debug("event broadcast", zap.String("event", env.Event), zap.Int("clients", delivered))
		}
	}
	if d.bus != nil {
		if err := d.bus.PublishEvent(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SendOrderMail renders and enqueues a customer email. Orders without a contact address are skipped.
func (d *Dispatcher) SendOrderMail(ctx context.Context, mail services.OrderMail) error {
	if d.mail == nil {
		return nil
	}
	to := strings.TrimSpace(mail.Order.Contact.Email)
	if to == "" {
		d.logger.Debug("mail skipped", zap.String("kind", mail.Kind), zap.String("orderId", mail.Order.ID))
		return nil
	}
	subject, text, html, err := d.renderer.Render(mail.Kind, mail.Order)
	if err != nil {
		return err
	}
	job := MailJob{
		ID:       uuid.NewString(),
		Kind:     mail.Kind,
		To:       to,
		ToName:   strings.TrimSpace(mail.Order.Contact.Name),
		Subject:  subject,
		HTML:     html,
		Text:     text,
		OrderID:  mail.Order.ID,
		QueuedAt: d.now(),
	}
	msgID, err := d.mail.PublishMail(ctx, job)
	if err != nil {
		return fmt.Errorf("queue %s mail: %w", mail.Kind, err)
	}
	d.logger.Debug("mail queued", zap.String("kind", mail.Kind), zap.String("orderId", mail.Order.ID), zap.String("messageId", msgID))
	return nil
}
