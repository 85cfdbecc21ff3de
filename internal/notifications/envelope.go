package notifications

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanko-field/commerce/internal/services"
)

// Pass-through event names produced outside the order core.
const (
	EventNewApplication = "new-application"
	EventInboxUpsert    = "inbox:upsert"
	EventNewMessage     = "newMessage"
)

// ErrUnknownEvent is returned when an event name is not part of the broadcast vocabulary.
var ErrUnknownEvent = errors.New("notifications: unknown event")

var knownEvents = map[string]struct{}{
	services.EventNewOrder:             {},
	services.EventOrderStatusChanged:   {},
	services.EventReturnRequestCreated: {},
	services.EventReturnRequestUpdated: {},
	EventNewApplication:                {},
	EventInboxUpsert:                   {},
	EventNewMessage:                    {},
}

// IsKnownEvent reports whether name may be broadcast.
func IsKnownEvent(name string) bool {
	_, ok := knownEvents[name]
	return ok
}

// Envelope is the wire shape shared by websocket frames and event bus messages.
type Envelope struct {
	ID         string         `json:"id"`
	Event      string         `json:"event"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEnvelope stamps event with a fresh id. A zero OccurredAt is replaced with now.
func NewEnvelope(event services.Event, now time.Time) Envelope {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	return Envelope{
		ID:         uuid.NewString(),
		Event:      strings.TrimSpace(event.Name),
		UserID:     strings.TrimSpace(event.UserID),
		OccurredAt: occurred.UTC(),
		Data:       event.Data,
	}
}

// partitionKey groups messages about the same aggregate.
func (e Envelope) partitionKey() string {
	for _, key := range []string{"order_id", "return_id"} {
		if value, ok := e.Data[key].(string); ok && value != "" {
			return value
		}
	}
	if e.UserID != "" {
		return e.UserID
	}
	return e.ID
}

func (e Envelope) stringField(key string) string {
	value, _ := e.Data[key].(string)
	return value
}
