package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubEventPublisher publishes event envelopes to a Pub/Sub topic.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event bus.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishEvent publishes env and waits for the server acknowledgement.
func (p *PubSubEventPublisher) PublishEvent(ctx context.Context, env Envelope) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}
	data, err := p.marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	attrs := make(map[string]string)
	setAttr(attrs, "event", env.Event)
	setAttr(attrs, "eventId", env.ID)
	setAttr(attrs, "userId", env.UserID)
	setAttr(attrs, "orderId", env.stringField("order_id"))
	setAttr(attrs, "returnId", env.stringField("return_id"))

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", env.Event, err)
	}
	return nil
}

// PubSubMailPublisher enqueues rendered customer emails for the mail worker.
type PubSubMailPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubMailPublisher constructs a Pub/Sub backed mail queue.
func NewPubSubMailPublisher(topic *pubsub.Topic) (*PubSubMailPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub mail publisher: topic is required")
	}
	return &PubSubMailPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishMail enqueues job and returns the server assigned message id.
func (p *PubSubMailPublisher) PublishMail(ctx context.Context, job MailJob) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub mail publisher: not initialised")
	}
	data, err := p.marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal mail job: %w", err)
	}
	attrs := make(map[string]string)
	setAttr(attrs, "kind", job.Kind)
	setAttr(attrs, "orderId", job.OrderID)
	setAttr(attrs, "idempotencyKey", job.ID)

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish mail job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
