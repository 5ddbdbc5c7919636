package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/zenpa1/budget-tracker/internal/logger"
)

// ErrNotObtained is returned when the lock stays taken until ctx is done.
var ErrNotObtained = errors.New("lock: not obtained")

const redisRetryInterval = 50 * time.Millisecond

// Redis is a Locker shared by every instance pointed at the same Redis.
// A held lock expires after ttl so a crashed holder cannot block a key.
type Redis struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a distributed Locker on rdb.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: redislock.New(rdb), prefix: prefix, ttl: ttl}
}

// Lock implements Locker. It retries until the lock is free, ctx is done, or
// ttl has passed.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.ttl)
	defer cancel()

	lockKey := fmt.Sprintf("%s:lock:%s", r.prefix, key)
	l, err := r.client.Obtain(waitCtx, lockKey, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(redisRetryInterval),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Named("lock").Warnw("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}
