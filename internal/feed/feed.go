// Package feed carries change events from the remote store to every running
// session. A transport only has to move Events; decoding into typed records
// happens in the cache.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zenpa1/budget-tracker/internal/models"
)

// EventType is the kind of change a record went through.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ErrClosed is reported when a subscription is torn down by its transport.
var ErrClosed = errors.New("feed: subscription closed")

// Event describes one change to one record.
type Event struct {
	Collection models.Collection `json:"collection"`
	Type       EventType         `json:"event_type"`
	ID         string            `json:"id"`
	Version    int64             `json:"version"`
	Record     json.RawMessage   `json:"record,omitempty"`
	EmittedAt  time.Time         `json:"emitted_at"`
}

// NewEvent encodes record into an Event of the given type.
func NewEvent(eventType EventType, record models.Record) (Event, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s %s: %w", record.Collection(), record.GetID(), err)
	}
	return Event{
		Collection: record.Collection(),
		Type:       eventType,
		ID:         record.GetID(),
		Version:    record.GetVersion(),
		Record:     raw,
		EmittedAt:  time.Now().UTC(),
	}, nil
}

// Publisher emits change events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber opens change-event subscriptions for a set of collections.
type Subscriber interface {
	Subscribe(ctx context.Context, collections ...models.Collection) (Subscription, error)
}

// Subscription delivers events until it is closed or its transport drops.
// When the transport drops, Events is closed and the cause is sent on Err.
type Subscription interface {
	Events() <-chan Event
	Err() <-chan error
	Close() error
}

// Feed is a transport that can both publish and subscribe.
type Feed interface {
	Publisher
	Subscriber
	Close() error
}

// Nop discards published events. It is used when a store has no listeners.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// wants reports whether c is one of the requested collections. An empty
// request means every collection.
func wants(requested []models.Collection, c models.Collection) bool {
	if len(requested) == 0 {
		return true
	}
	for _, r := range requested {
		if r == c {
			return true
		}
	}
	return false
}
