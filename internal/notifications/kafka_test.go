package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hanko-field/commerce/internal/services"
)

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeKafkaWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaEventPublisherKeysByAggregate(t *testing.T) {
	writer := &fakeKafkaWriter{}
	publisher := newKafkaEventPublisher(writer)

	cases := []struct {
		name string
		env  Envelope
		key  string
	}{
		{name: "order", env: Envelope{ID: "evt_1", Event: services.EventNewOrder, UserID: "user_1", Data: map[string]any{"order_id": "ord_1"}}, key: "ord_1"},
		{name: "return", env: Envelope{ID: "evt_2", Event: services.EventReturnRequestCreated, Data: map[string]any{"return_id": "ret_1"}}, key: "ret_1"},
		{name: "user", env: Envelope{ID: "evt_3", Event: EventInboxUpsert, UserID: "user_9"}, key: "user_9"},
		{name: "id", env: Envelope{ID: "evt_4", Event: EventNewApplication}, key: "evt_4"},
	}
	for _, tc := range cases {
		tc.env.OccurredAt = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		if err := publisher.PublishEvent(context.Background(), tc.env); err != nil {
			t.Fatalf("%s: PublishEvent: %v", tc.name, err)
		}
	}

	if len(writer.messages) != len(cases) {
		t.Fatalf("expected %d messages, got %d", len(cases), len(writer.messages))
	}
	for i, tc := range cases {
		msg := writer.messages[i]
		if string(msg.Key) != tc.key {
			t.Fatalf("%s: expected key %q, got %q", tc.name, tc.key, msg.Key)
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != tc.env.Event || string(msg.Headers[1].Value) != tc.env.ID {
			t.Fatalf("%s: unexpected headers %v", tc.name, msg.Headers)
		}
	}

	if err := publisher.Close(); err != nil || !writer.closed {
		t.Fatalf("expected writer to close, err=%v", err)
	}
}

func TestKafkaEventPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	publisher := newKafkaEventPublisher(&fakeKafkaWriter{err: boom})
	err := publisher.PublishEvent(context.Background(), Envelope{ID: "evt_1", Event: services.EventNewOrder})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestNewKafkaEventPublisherValidation(t *testing.T) {
	if _, err := NewKafkaEventPublisher([]string{" "}, "orders"); err == nil {
		t.Fatalf("expected broker validation error")
	}
	if _, err := NewKafkaEventPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Fatalf("expected topic validation error")
	}
	publisher, err := NewKafkaEventPublisher([]string{"localhost:9092"}, "orders")
	if err != nil {
		t.Fatalf("NewKafkaEventPublisher: %v", err)
	}
	_ = publisher.Close()
}
