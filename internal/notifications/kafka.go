package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher publishes event envelopes to a Kafka topic. Messages are keyed by the
// aggregate id so events for one order land on one partition in order.
type KafkaEventPublisher struct {
	writer  kafkaWriter
	marshal func(any) ([]byte, error)
}

// NewKafkaEventPublisher constructs a synchronous, hash-balanced writer for topic.
func NewKafkaEventPublisher(brokers []string, topic string) (*KafkaEventPublisher, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka event publisher: at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka event publisher: topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        strings.TrimSpace(topic),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 20 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaEventPublisher(writer), nil
}

func newKafkaEventPublisher(writer kafkaWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer, marshal: json.Marshal}
}

// PublishEvent writes env and waits for the broker acknowledgement.
func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, env Envelope) error {
	if p == nil || p.writer == nil {
		return errors.New("kafka event publisher: not initialised")
	}
	value, err := p.marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.partitionKey()),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(env.Event)},
			{Key: "event_id", Value: []byte(env.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event %s: %w", env.Event, err)
	}
	return nil
}

// Close flushes pending writes and releases broker connections.
func (p *KafkaEventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
