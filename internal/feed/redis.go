package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
)

// Redis publishes change events on Redis pub/sub, one channel per
// collection: "<prefix>:<collection>".
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the Redis server at url and verifies it with PING.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client, prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: strings.TrimSuffix(prefix, ":")}
}

// Client exposes the underlying connection so that other components (the
// budget locker) can share it.
func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) channel(c models.Collection) string {
	return r.prefix + ":" + string(c)
}

// Publish implements Publisher.
func (r *Redis) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(event.Collection), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Collection, err)
	}
	return nil
}

// Subscribe implements Subscriber. The subscription is confirmed with the
// server before it is returned.
func (r *Redis) Subscribe(ctx context.Context, collections ...models.Collection) (Subscription, error) {
	if len(collections) == 0 {
		collections = models.Collections()
	}
	channels := make([]string, 0, len(collections))
	for _, c := range collections {
		channels = append(channels, r.channel(c))
	}

	ps := r.client.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	sub := &redisSub{
		ps:     ps,
		events: make(chan Event, defaultMemoryBuffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisSub struct {
	ps     *redis.PubSub
	events chan Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func (s *redisSub) Events() <-chan Event { return s.events }
func (s *redisSub) Err() <-chan error    { return s.errs }

func (s *redisSub) pump() {
	defer close(s.events)
	log := logger.Named("feed.redis")

	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				s.errs <- ErrClosed
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warnw("dropping malformed change event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case s.events <- event:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
