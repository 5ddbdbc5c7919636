package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/zenpa1/budget-tracker/internal/models"
)

// ErrSlowConsumer is reported when a subscriber's buffer overflows. The
// subscription is dropped rather than blocking publishers.
var ErrSlowConsumer = errors.New("feed: subscriber fell behind")

const defaultMemoryBuffer = 256

// Memory is an in-process fan-out feed. Each subscriber gets its own
// buffered channel.
type Memory struct {
	mu     sync.Mutex
	subs   map[*memorySub]struct{}
	buffer int
	closed bool
}

// NewMemory creates an in-process feed. buffer <= 0 uses the default.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &Memory{subs: make(map[*memorySub]struct{}), buffer: buffer}
}

// Publish delivers event to every matching subscriber.
func (m *Memory) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	for sub := range m.subs {
		if !wants(sub.collections, event.Collection) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			delete(m.subs, sub)
			sub.fail(ErrSlowConsumer)
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (m *Memory) Subscribe(ctx context.Context, collections ...models.Collection) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		owner:       m,
		collections: collections,
		events:      make(chan Event, m.buffer),
		errs:        make(chan error, 1),
	}
	m.subs[sub] = struct{}{}
	return sub, nil
}

// Drop disconnects every current subscriber with ErrClosed, as a broken
// transport would. New subscriptions are still accepted.
func (m *Memory) Drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sub := range m.subs {
		delete(m.subs, sub)
		sub.fail(ErrClosed)
	}
}

// Subscribers returns the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close disconnects all subscribers and rejects further use.
func (m *Memory) Close() error {
	m.Drop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type memorySub struct {
	owner       *Memory
	collections []models.Collection
	events      chan Event
	errs        chan error
	once        sync.Once
}

func (s *memorySub) Events() <-chan Event { return s.events }
func (s *memorySub) Err() <-chan error    { return s.errs }

// fail must be called with owner.mu held.
func (s *memorySub) fail(err error) {
	s.once.Do(func() {
		s.errs <- err
		close(s.events)
	})
}

func (s *memorySub) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	delete(s.owner.subs, s)
	s.once.Do(func() { close(s.events) })
	return nil
}
